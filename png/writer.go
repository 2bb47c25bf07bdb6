package png

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

type encoder struct {
	w      io.Writer
	raw    *Raw
	err    error
	header [8]byte
	footer [4]byte
}

func (e *encoder) writeChunk(b []byte, name string) {
	if e.err != nil {
		return
	}
	n := uint32(len(b))
	if int(n) != len(b) || n > 0x7fffffff {
		e.err = UnsupportedError(name + " chunk is too large")
		return
	}
	binary.BigEndian.PutUint32(e.header[:4], n)
	copy(e.header[4:], name)

	crc := crc32.NewIEEE()
	crc.Write(e.header[4:8])
	crc.Write(b)
	binary.BigEndian.PutUint32(e.footer[:], crc.Sum32())

	if _, e.err = e.w.Write(e.header[:]); e.err != nil {
		return
	}
	if _, e.err = e.w.Write(b); e.err != nil {
		return
	}
	_, e.err = e.w.Write(e.footer[:])
}

func (e *encoder) writeIHDR() {
	var b [13]byte
	binary.BigEndian.PutUint32(b[0:4], uint32(e.raw.Width))
	binary.BigEndian.PutUint32(b[4:8], uint32(e.raw.Height))
	b[8] = 8
	b[9] = ctPaletted
	b[10] = 0 // deflate
	b[11] = 0 // adaptive filtering, filter type None on every row
	b[12] = 0 // no interlace
	e.writeChunk(b[:], "IHDR")
}

func (e *encoder) writePLTEAndtRNS() {
	e.writeChunk(e.raw.Palette, "PLTE")
	if len(e.raw.Transparency) > 0 {
		e.writeChunk(e.raw.Transparency, "tRNS")
	}
}

func (e *encoder) writeIDAT() {
	if e.err != nil {
		return
	}

	var b bytes.Buffer
	zw, err := zlib.NewWriterLevel(&b, zlib.BestCompression)
	if err != nil {
		e.err = err
		return
	}

	w := e.raw.Width
	row := make([]byte, 1+w)
	row[0] = ftNone
	for y := 0; y < e.raw.Height; y++ {
		copy(row[1:], e.raw.Pix[y*w:(y+1)*w])
		if _, err := zw.Write(row); err != nil {
			e.err = err
			return
		}
	}
	if err := zw.Close(); err != nil {
		e.err = err
		return
	}

	e.writeChunk(b.Bytes(), "IDAT")
}

func (e *encoder) writeIEND() {
	e.writeChunk(nil, "IEND")
}

func validate(raw *Raw) error {
	switch {
	case raw.Depth != 8:
		return UnsupportedError(fmt.Sprintf("bit depth %d, only 8-bit output is written", raw.Depth))
	case raw.Interlaced:
		return UnsupportedError("interlaced output")
	case raw.Width <= 0 || raw.Height <= 0 || raw.Width > 0x7fffffff || raw.Height > 0x7fffffff:
		return FormatError("invalid dimensions")
	case len(raw.Palette) == 0 || len(raw.Palette)%3 != 0 || len(raw.Palette) > 3*MaxColors:
		return FormatError("bad palette length")
	case len(raw.Transparency) > raw.Colors():
		return FormatError("transparency table longer than palette")
	case len(raw.Pix) != raw.Width*raw.Height:
		return FormatError("pixel data does not match dimensions")
	}
	return nil
}

// Encode writes raw to w as an 8-bit indexed-color PNG with no scanline
// filtering. raw.Pix must hold one byte per pixel.
func Encode(w io.Writer, raw *Raw) error {
	if err := validate(raw); err != nil {
		return err
	}

	e := encoder{w: w, raw: raw}

	if _, e.err = io.WriteString(w, signature); e.err != nil {
		return e.err
	}
	e.writeIHDR()
	e.writePLTEAndtRNS()
	e.writeIDAT()
	e.writeIEND()

	return e.err
}
