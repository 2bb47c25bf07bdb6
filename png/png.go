/*
Package png implements a decoder and encoder for palette-based PNG images.

Unlike image/png, the decoder does not resolve pixels into colors. It returns
the raw parts of the file: the dimensions, the sample depth, the pixel samples
still packed into scanline-aligned rows with the filters removed, the PLTE
palette bytes and the tRNS transparency bytes. Any color type other than
indexed color is rejected.

The encoder always writes 8-bit indexed color with no scanline filtering, as
recommended for palette images by RFC 2083 section 9.6.
*/
package png

import "github.com/bodgit/pngpal/bitpack"

const (
	signature = "\x89PNG\r\n\x1a\n"

	ctPaletted = 3

	// MaxColors is the largest number of palette entries a PNG can hold.
	MaxColors = 256

	// Guards against allocating for absurd headers
	maxPixels = 1 << 28
)

// Filter types
const (
	ftNone = iota
	ftSub
	ftUp
	ftAverage
	ftPaeth
)

// Adam7 passes
var interlacing = []struct {
	xFactor, yFactor, xOffset, yOffset int
}{
	{8, 8, 0, 0},
	{8, 8, 4, 0},
	{4, 8, 0, 4},
	{4, 4, 2, 0},
	{2, 4, 0, 2},
	{2, 2, 1, 0},
	{1, 2, 0, 1},
}

// A FormatError reports that the input is not a valid PNG.
type FormatError string

func (e FormatError) Error() string {
	return "png: invalid format: " + string(e)
}

// An UnsupportedError reports that the input uses a valid but unsupported
// PNG feature, such as a color type other than indexed color.
type UnsupportedError string

func (e UnsupportedError) Error() string {
	return "png: unsupported feature: " + string(e)
}

// Config holds everything in a PNG file apart from the pixel data.
type Config struct {
	Width, Height int
	// Depth is the number of bits per palette index: 1, 2, 4 or 8.
	Depth      int
	Interlaced bool
	// Palette holds RGB triples, three bytes per entry.
	Palette []byte
	// Transparency holds one alpha value per palette entry and may be
	// shorter than the palette.
	Transparency []byte
}

// Colors returns the number of palette entries.
func (c *Config) Colors() int {
	return len(c.Palette) / 3
}

// Raw is a decoded but not yet unpacked indexed-color image.
type Raw struct {
	Config
	// Pix holds Height scanlines of Stride() bytes each, filters removed.
	// Interlaced images are stored in the same non-interlaced layout.
	Pix []byte
}

// Stride returns the number of bytes in one packed scanline.
func (r *Raw) Stride() int {
	return bitpack.RowBytes(r.Depth, r.Width)
}
