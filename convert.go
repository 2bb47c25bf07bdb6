package pngpal

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"os"

	"github.com/bodgit/pngpal/indexed"
	"github.com/ericpauley/go-quantize/quantize"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

var errNoColors = errors.New("quantizer produced an empty palette")

// Convert reduces m to at most colors colors and returns it as an indexed
// image. Colors chosen by median cut are kept as is, with any alpha moved
// into the transparency table. If dither is set, the quantization error is
// diffused with Floyd-Steinberg.
func Convert(m image.Image, colors int, dither bool) (*indexed.Image, error) {
	if colors < 1 || colors > indexed.MaxColors {
		return nil, fmt.Errorf("cannot convert to %d colors", colors)
	}

	b := m.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: %dx%d", indexed.ErrDimensions, b.Dx(), b.Dy())
	}

	q := quantize.MedianCutQuantizer{}
	p := q.Quantize(make(color.Palette, 0, colors), m)
	if len(p) == 0 {
		return nil, errNoColors
	}
	if len(p) > colors {
		p = p[:colors]
	}

	pm := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), p)
	if dither {
		draw.FloydSteinberg.Draw(pm, pm.Bounds(), m, b.Min)
	} else {
		draw.Draw(pm, pm.Bounds(), m, b.Min, draw.Src)
	}

	palette := make([]indexed.RGB, len(p))
	trns := make([]uint8, len(p))
	for i, c := range p {
		nc := color.NRGBAModel.Convert(c).(color.NRGBA)
		palette[i] = indexed.RGB{R: nc.R, G: nc.G, B: nc.B}
		trns[i] = nc.A
	}

	return indexed.NewFromParts(b.Dx(), b.Dy(), pm.Pix, palette, trns)
}

// ConvertFile reads the image in file, which may be any format with a
// registered decoder, and converts it with Convert.
func ConvertFile(file string, colors int, dither bool) (*indexed.Image, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	return Convert(m, colors, dither)
}
