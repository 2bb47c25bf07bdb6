package png

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"hash"
	"hash/crc32"
	"io"

	"github.com/bodgit/pngpal/bitpack"
)

// Decoding stages, chunks must appear in this order
const (
	dsStart = iota
	dsSeenIHDR
	dsSeenPLTE
	dsSeentRNS
	dsSeenIDAT
	dsSeenIEND
)

// Used when a paletted image carries no PLTE chunk
var defaultPalette = []byte{0, 0, 0, 0, 0, 0}

func readFull(r io.Reader, b []byte) error {
	_, err := io.ReadFull(r, b)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

type decoder struct {
	r     io.Reader
	crc   hash.Hash32
	stage int
	raw   Raw
	idat  bytes.Buffer

	tmp [8]byte
}

func (d *decoder) checkHeader() error {
	if err := readFull(d.r, d.tmp[:len(signature)]); err != nil {
		return err
	}
	if string(d.tmp[:len(signature)]) != signature {
		return FormatError("not a PNG file")
	}
	return nil
}

func (d *decoder) parseIHDR(b []byte) error {
	if len(b) != 13 {
		return FormatError("bad IHDR length")
	}

	w := int64(binary.BigEndian.Uint32(b[0:4]))
	h := int64(binary.BigEndian.Uint32(b[4:8]))
	depth, ct := int(b[8]), b[9]

	if ct != ctPaletted {
		return UnsupportedError(fmt.Sprintf("color type %d, image must be palette-based", ct))
	}

	switch depth {
	case 1, 2, 4, 8:
	case 16:
		return UnsupportedError("16-bit palette")
	default:
		return FormatError(fmt.Sprintf("bit depth %d", depth))
	}

	if b[10] != 0 {
		return UnsupportedError("compression method")
	}
	if b[11] != 0 {
		return UnsupportedError("filter method")
	}

	switch b[12] {
	case 0:
	case 1:
		d.raw.Interlaced = true
	default:
		return FormatError("invalid interlace method")
	}

	if w <= 0 || h <= 0 || w > 0x7fffffff || h > 0x7fffffff {
		return FormatError("invalid dimensions")
	}
	if w*h > maxPixels {
		return UnsupportedError("dimension overflow")
	}

	d.raw.Width, d.raw.Height, d.raw.Depth = int(w), int(h), depth

	return nil
}

func (d *decoder) parsePLTE(b []byte) error {
	if len(b)%3 != 0 || len(b) == 0 || len(b) > 3*MaxColors {
		return FormatError("bad PLTE length")
	}
	d.raw.Palette = append([]byte(nil), b...)
	return nil
}

func (d *decoder) parsetRNS(b []byte) error {
	if len(b) > d.raw.Colors() {
		return FormatError("bad tRNS length")
	}
	d.raw.Transparency = append([]byte(nil), b...)
	return nil
}

func (d *decoder) readChunk() (string, []byte, error) {
	if err := readFull(d.r, d.tmp[:8]); err != nil {
		return "", nil, err
	}
	length := binary.BigEndian.Uint32(d.tmp[:4])
	if length > 0x7fffffff {
		return "", nil, FormatError("chunk too large")
	}
	name := string(d.tmp[4:8])

	// Grows only as data arrives, whatever length the header claims
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, d.r, int64(length)); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return "", nil, err
	}
	b := buf.Bytes()

	d.crc.Reset()
	d.crc.Write(d.tmp[4:8])
	d.crc.Write(b)

	if err := readFull(d.r, d.tmp[:4]); err != nil {
		return "", nil, err
	}
	if binary.BigEndian.Uint32(d.tmp[:4]) != d.crc.Sum32() {
		return "", nil, FormatError("invalid checksum in " + name)
	}

	return name, b, nil
}

func (d *decoder) parseChunk(configOnly bool) (bool, error) {
	name, b, err := d.readChunk()
	if err != nil {
		return false, err
	}

	switch name {
	case "IHDR":
		if d.stage != dsStart {
			return false, FormatError("chunk out of order")
		}
		d.stage = dsSeenIHDR
		return false, d.parseIHDR(b)
	case "PLTE":
		if d.stage != dsSeenIHDR {
			return false, FormatError("chunk out of order")
		}
		d.stage = dsSeenPLTE
		return false, d.parsePLTE(b)
	case "tRNS":
		if d.stage != dsSeenPLTE {
			return false, FormatError("chunk out of order")
		}
		d.stage = dsSeentRNS
		return false, d.parsetRNS(b)
	case "IDAT":
		if d.stage < dsSeenIHDR || d.stage > dsSeenIDAT {
			return false, FormatError("chunk out of order")
		}
		if d.stage < dsSeenPLTE {
			d.raw.Palette = append([]byte(nil), defaultPalette...)
		}
		d.stage = dsSeenIDAT
		if configOnly {
			return true, nil
		}
		d.idat.Write(b)
		return false, nil
	case "IEND":
		if d.stage != dsSeenIDAT {
			return false, FormatError("chunk out of order")
		}
		d.stage = dsSeenIEND
		return true, nil
	}

	if d.stage == dsStart {
		return false, FormatError("missing IHDR")
	}

	// Ancillary chunks have the lowercase bit set in the first letter
	if name[0]&0x20 == 0 {
		return false, UnsupportedError("critical chunk " + name)
	}

	return false, nil
}

func paeth(a, b, c uint8) uint8 {
	pc := int(c)
	pa := int(b) - pc
	pb := int(a) - pc
	pc = pa + pb
	if pa < 0 {
		pa = -pa
	}
	if pb < 0 {
		pb = -pb
	}
	if pc < 0 {
		pc = -pc
	}
	if pa <= pb && pa <= pc {
		return a
	} else if pb <= pc {
		return b
	}
	return c
}

// Indexed color always has one byte per complete pixel for filtering
func unfilter(ft byte, cdat, pdat []byte) error {
	const bpp = 1

	switch ft {
	case ftNone:
	case ftSub:
		for i := bpp; i < len(cdat); i++ {
			cdat[i] += cdat[i-bpp]
		}
	case ftUp:
		for i, p := range pdat {
			cdat[i] += p
		}
	case ftAverage:
		for i := 0; i < bpp && i < len(cdat); i++ {
			cdat[i] += pdat[i] / 2
		}
		for i := bpp; i < len(cdat); i++ {
			cdat[i] += uint8((int(cdat[i-bpp]) + int(pdat[i])) / 2)
		}
	case ftPaeth:
		for i := 0; i < bpp && i < len(cdat); i++ {
			cdat[i] += paeth(0, pdat[i], 0)
		}
		for i := bpp; i < len(cdat); i++ {
			cdat[i] += paeth(cdat[i-bpp], pdat[i], pdat[i-bpp])
		}
	default:
		return FormatError("bad filter type")
	}

	return nil
}

// readRows reads height filtered scanlines of width samples, calling fn
// with each unfiltered scanline. The slice is reused between calls.
func (d *decoder) readRows(r io.Reader, width, height int, fn func(y int, row []byte) error) error {
	stride := bitpack.RowBytes(d.raw.Depth, width)
	cr := make([]byte, 1+stride)
	pr := make([]byte, 1+stride)

	for y := 0; y < height; y++ {
		if err := readFull(r, cr); err != nil {
			if err == io.ErrUnexpectedEOF {
				return FormatError("not enough pixel data")
			}
			return err
		}
		if err := unfilter(cr[0], cr[1:], pr[1:]); err != nil {
			return err
		}
		if err := fn(y, cr[1:]); err != nil {
			return err
		}
		pr, cr = cr, pr
	}

	return nil
}

// streamError converts errors from the zlib reader into format errors.
func streamError(err error) error {
	switch err.(type) {
	case flate.CorruptInputError:
		return FormatError("corrupt zlib stream")
	}
	if err == zlib.ErrChecksum {
		return FormatError("invalid checksum in zlib stream")
	}
	return err
}

func (d *decoder) readPixels(r io.Reader) error {
	w, h := d.raw.Width, d.raw.Height
	stride := d.raw.Stride()

	if !d.raw.Interlaced {
		d.raw.Pix = make([]byte, stride*h)
		return d.readRows(r, w, h, func(y int, row []byte) error {
			copy(d.raw.Pix[y*stride:], row)
			return nil
		})
	}

	samples := make([]byte, w*h)
	for _, p := range interlacing {
		pw := (w - p.xOffset + p.xFactor - 1) / p.xFactor
		ph := (h - p.yOffset + p.yFactor - 1) / p.yFactor
		if pw == 0 || ph == 0 {
			continue
		}
		if err := d.readRows(r, pw, ph, func(y int, row []byte) error {
			s, err := bitpack.Unpack(row, d.raw.Depth, pw)
			if err != nil {
				return err
			}
			dy := p.yOffset + y*p.yFactor
			for x, v := range s {
				samples[dy*w+p.xOffset+x*p.xFactor] = v
			}
			return nil
		}); err != nil {
			return err
		}
	}

	var err error
	d.raw.Pix, err = bitpack.Pack(samples, d.raw.Depth, w)
	return err
}

func (d *decoder) readImage() error {
	zr, err := zlib.NewReader(&d.idat)
	if err != nil {
		return FormatError("bad zlib stream: " + err.Error())
	}

	if err := d.readPixels(zr); err != nil {
		zr.Close()
		return streamError(err)
	}

	// The stream must end with the last scanline, reading to the end also
	// verifies the Adler-32 checksum
	var extra [1]byte
	n, err := io.ReadFull(zr, extra[:])
	switch {
	case n != 0:
		zr.Close()
		return FormatError("too much pixel data")
	case err != io.EOF:
		zr.Close()
		return streamError(err)
	}

	return streamError(zr.Close())
}

func (d *decoder) decode(r io.Reader, configOnly bool) error {
	d.r = r
	d.crc = crc32.NewIEEE()

	if err := d.checkHeader(); err != nil {
		if err == io.ErrUnexpectedEOF {
			return FormatError("not a PNG file")
		}
		return err
	}

	for {
		done, err := d.parseChunk(configOnly)
		if err != nil {
			if err == io.ErrUnexpectedEOF {
				return FormatError("truncated chunk")
			}
			return err
		}
		if done {
			break
		}
	}

	if configOnly {
		return nil
	}

	return d.readImage()
}

// Decode reads a palette-based PNG image from r and returns its raw parts.
func Decode(r io.Reader) (*Raw, error) {
	var d decoder
	if err := d.decode(r, false); err != nil {
		return nil, err
	}
	return &d.raw, nil
}

// DecodeConfig returns the dimensions, depth, palette and transparency of a
// palette-based PNG image without decoding the pixel data.
func DecodeConfig(r io.Reader) (Config, error) {
	var d decoder
	if err := d.decode(r, true); err != nil {
		return Config{}, err
	}
	return d.raw.Config, nil
}
