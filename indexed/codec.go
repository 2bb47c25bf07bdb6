package indexed

import (
	"fmt"
	"io"

	"github.com/bodgit/pngpal/bitpack"
	"github.com/bodgit/pngpal/png"
)

// FromRaw builds an image from a decoded PNG, unpacking sub-byte samples.
func FromRaw(raw *png.Raw) (*Image, error) {
	pix := raw.Pix
	if raw.Depth < 8 {
		var err error
		if pix, err = bitpack.Unpack(raw.Pix, raw.Depth, raw.Width); err != nil {
			return nil, err
		}
	}

	palette := make([]RGB, 0, raw.Colors())
	for i := 0; i+2 < len(raw.Palette); i += 3 {
		palette = append(palette, RGB{raw.Palette[i], raw.Palette[i+1], raw.Palette[i+2]})
	}

	return NewFromParts(raw.Width, raw.Height, pix, palette, raw.Transparency)
}

// Raw returns the image as an 8-bit PNG ready to be encoded.
func (m *Image) Raw() *png.Raw {
	return &png.Raw{
		Config: png.Config{
			Width:        m.width,
			Height:       m.height,
			Depth:        8,
			Palette:      m.palette.Bytes(),
			Transparency: m.trns.Values(),
		},
		Pix: m.Pix(),
	}
}

// Decode reads a palette-based PNG image from r.
func Decode(r io.Reader) (*Image, error) {
	raw, err := png.Decode(r)
	if err != nil {
		return nil, err
	}
	m, err := FromRaw(raw)
	if err != nil {
		return nil, fmt.Errorf("malformed image data: %w", err)
	}
	return m, nil
}

// Encode writes the image to w as an 8-bit indexed-color PNG with no
// scanline filtering. The image is not modified, even on failure.
func (m *Image) Encode(w io.Writer) error {
	return png.Encode(w, m.Raw())
}
