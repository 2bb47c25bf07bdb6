/*
Package palfile implements Microsoft RIFF palette files, usually with a .pal
extension.

A palette file is a RIFF form of type "PAL " holding a "data" chunk with a
LOGPALETTE structure: a 16-bit version (0x0300), a 16-bit entry count and
four bytes per entry, red, green, blue and a flags byte which is ignored.
*/
package palfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/bodgit/pngpal/indexed"
	"golang.org/x/image/riff"
)

// Extension is the conventional filename extension.
const Extension = ".pal"

const version = 0x0300

var (
	riffType = riff.FourCC{'R', 'I', 'F', 'F'}
	palType  = riff.FourCC{'P', 'A', 'L', ' '}
	dataType = riff.FourCC{'d', 'a', 't', 'a'}
)

var (
	errNoData      = errors.New("palfile: no data chunk")
	errTooMany     = fmt.Errorf("palfile: more than %d colors", indexed.MaxColors)
	errEmpty       = errors.New("palfile: no colors")
	errShortChunk  = errors.New("palfile: data chunk too short")
	errBadFormType = errors.New("palfile: not a palette")
)

// File is a palette file. It implements the encoding.BinaryMarshaler and
// encoding.BinaryUnmarshaler interfaces.
type File struct {
	Colors []indexed.RGB
}

// New returns a palette file holding a copy of colors.
func New(colors []indexed.RGB) *File {
	return &File{Colors: append([]indexed.RGB(nil), colors...)}
}

// MarshalBinary encodes the palette into RIFF form
func (f *File) MarshalBinary() ([]byte, error) {
	n := len(f.Colors)
	switch {
	case n == 0:
		return nil, errEmpty
	case n > indexed.MaxColors:
		return nil, errTooMany
	}

	size := 4 + 4*n
	b := new(bytes.Buffer)
	b.Write(riffType[:])
	b.Write(binary.LittleEndian.AppendUint32(nil, uint32(4+8+size)))
	b.Write(palType[:])
	b.Write(dataType[:])
	b.Write(binary.LittleEndian.AppendUint32(nil, uint32(size)))
	b.Write(binary.LittleEndian.AppendUint16(nil, version))
	b.Write(binary.LittleEndian.AppendUint16(nil, uint16(n)))
	for _, c := range f.Colors {
		b.Write([]byte{c.R, c.G, c.B, 0})
	}

	return b.Bytes(), nil
}

// UnmarshalBinary decodes the palette from RIFF form
func (f *File) UnmarshalBinary(b []byte) error {
	colors, err := read(bytes.NewReader(b))
	if err != nil {
		return err
	}
	f.Colors = colors
	return nil
}

// Read reads a palette file from r.
func Read(r io.Reader) (*File, error) {
	colors, err := read(r)
	if err != nil {
		return nil, err
	}
	return &File{Colors: colors}, nil
}

func read(r io.Reader) ([]indexed.RGB, error) {
	formType, rd, err := riff.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("palfile: could not open RIFF stream: %w", err)
	} else if formType != palType {
		return nil, errBadFormType
	}

	for {
		id, size, data, err := rd.Next()
		if err != nil {
			if err == io.EOF {
				return nil, errNoData
			}
			return nil, fmt.Errorf("palfile: could not read chunk: %w", err)
		}
		if id != dataType {
			continue
		}
		return readData(data, size)
	}
}

func readData(r io.Reader, size uint32) ([]indexed.RGB, error) {
	if size < 4 {
		return nil, errShortChunk
	}

	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, errShortChunk
	}
	if v := binary.LittleEndian.Uint16(hdr[0:2]); v != version {
		return nil, fmt.Errorf("palfile: unsupported version %#04x", v)
	}

	count := int(binary.LittleEndian.Uint16(hdr[2:4]))
	switch {
	case count == 0:
		return nil, errEmpty
	case count > indexed.MaxColors:
		return nil, errTooMany
	case uint32(4+4*count) > size:
		return nil, errShortChunk
	}

	buf := make([]byte, 4*count)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errShortChunk
	}

	colors := make([]indexed.RGB, count)
	for i := range colors {
		colors[i] = indexed.RGB{R: buf[4*i], G: buf[4*i+1], B: buf[4*i+2]}
	}

	return colors, nil
}
