package indexed

import (
	"fmt"
	"image"
	"image/color"
)

// Image is an editable palette-indexed image. It is not safe for concurrent
// use.
type Image struct {
	width, height int
	pix           []uint8
	palette       Palette
	trns          Transparency

	// Memoized by Render, nil whenever it is out of date
	rgba []byte
}

// New returns a blank image filled with palette index 0. The palette holds
// two black entries and index 0 is fully transparent.
func New(width, height int) (*Image, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrDimensions, width, height)
	}

	m := &Image{
		width:  width,
		height: height,
		pix:    make([]uint8, width*height),
	}
	m.palette.push(RGB{})
	m.palette.push(RGB{})
	m.trns.set(0, 0)

	return m, nil
}

// NewDefault returns a blank DefaultSize by DefaultSize image.
func NewDefault() *Image {
	m, _ := New(DefaultSize, DefaultSize)
	return m
}

// NewFromParts returns an image built from one palette index per pixel in
// row-major order, a palette and a transparency table. pix is copied.
// Trailing opaque transparency entries are dropped.
func NewFromParts(width, height int, pix []uint8, palette []RGB, trns []uint8) (*Image, error) {
	switch {
	case width < 1 || height < 1:
		return nil, fmt.Errorf("%w: %dx%d", ErrDimensions, width, height)
	case len(pix) != width*height:
		return nil, fmt.Errorf("%w: %d pixels for %dx%d", ErrPixelCount, len(pix), width, height)
	case len(palette) > MaxColors:
		return nil, fmt.Errorf("%w: %d colors", ErrPaletteFull, len(palette))
	case len(trns) > len(palette):
		return nil, fmt.Errorf("%w: %d > %d", ErrTransparencyLength, len(trns), len(palette))
	}

	for i, v := range pix {
		if int(v) >= len(palette) {
			return nil, fmt.Errorf("%w: pixel (%d, %d) has index %d, palette has %d colors", ErrIndexRange, i%width, i/width, v, len(palette))
		}
	}

	m := &Image{
		width:  width,
		height: height,
		pix:    append([]uint8(nil), pix...),
	}
	for _, c := range palette {
		m.palette.push(c)
	}
	for i, a := range trns {
		m.trns.set(i, a)
	}
	m.trns.canonicalize()

	return m, nil
}

// Width returns the width in pixels.
func (m *Image) Width() int {
	return m.width
}

// Height returns the height in pixels.
func (m *Image) Height() int {
	return m.height
}

// Palette returns a copy of the palette.
func (m *Image) Palette() []RGB {
	return m.palette.Colors()
}

// PaletteLen returns the number of palette entries.
func (m *Image) PaletteLen() int {
	return m.palette.Len()
}

// Color returns palette entry index.
func (m *Image) Color(index uint8) (RGB, error) {
	if err := m.checkIndex(index); err != nil {
		return RGB{}, err
	}
	return m.palette.At(int(index)), nil
}

// Transparency returns a copy of the transparency table.
func (m *Image) Transparency() []uint8 {
	return m.trns.Values()
}

// Alpha returns the alpha of palette index, Opaque when the table does not
// cover it.
func (m *Image) Alpha(index uint8) uint8 {
	return m.trns.Alpha(int(index))
}

// Pix returns a copy of the pixel grid, one palette index per pixel in
// row-major order.
func (m *Image) Pix() []uint8 {
	return append([]uint8(nil), m.pix...)
}

func (m *Image) checkIndex(index uint8) error {
	if int(index) >= m.palette.Len() {
		return fmt.Errorf("%w: %d, palette has %d colors", ErrIndexRange, index, m.palette.Len())
	}
	return nil
}

func (m *Image) offset(x, y int) (int, error) {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return 0, fmt.Errorf("%w: (%d, %d) in %dx%d", ErrBounds, x, y, m.width, m.height)
	}
	return y*m.width + x, nil
}

// Index returns the palette index of the pixel at (x, y).
func (m *Image) Index(x, y int) (uint8, error) {
	i, err := m.offset(x, y)
	if err != nil {
		return 0, err
	}
	return m.pix[i], nil
}

// SetPixel sets the pixel at (x, y) to palette index.
func (m *Image) SetPixel(x, y int, index uint8) error {
	if err := m.checkIndex(index); err != nil {
		return err
	}
	i, err := m.offset(x, y)
	if err != nil {
		return err
	}
	m.pix[i] = index
	m.invalidate()
	return nil
}

// SetColor replaces palette entry index.
func (m *Image) SetColor(index uint8, c RGB) error {
	if err := m.checkIndex(index); err != nil {
		return err
	}
	m.palette.set(int(index), c)
	m.invalidate()
	return nil
}

// PushColor appends c to the palette and returns its index.
func (m *Image) PushColor(c RGB) (uint8, error) {
	if !m.palette.push(c) {
		return 0, ErrPaletteFull
	}
	return uint8(m.palette.Len() - 1), nil
}

// SetTransparency sets the alpha of palette index. The transparency table
// grows with opaque entries as needed and trailing opaque entries are
// dropped afterwards.
func (m *Image) SetTransparency(index, alpha uint8) error {
	if err := m.checkIndex(index); err != nil {
		return err
	}
	m.trns.set(int(index), alpha)
	m.trns.canonicalize()
	m.invalidate()
	return nil
}

// SwapColors exchanges palette entries i and j, along with their alpha, and
// remaps every pixel so the image looks the same.
func (m *Image) SwapColors(i, j uint8) error {
	if err := m.checkIndex(i); err != nil {
		return err
	}
	if err := m.checkIndex(j); err != nil {
		return err
	}
	if i == j {
		return nil
	}

	ci, cj := m.palette.At(int(i)), m.palette.At(int(j))
	m.palette.set(int(i), cj)
	m.palette.set(int(j), ci)

	ai, aj := m.trns.Alpha(int(i)), m.trns.Alpha(int(j))
	m.trns.set(int(i), aj)
	m.trns.set(int(j), ai)
	m.trns.canonicalize()

	for k, v := range m.pix {
		switch v {
		case i:
			m.pix[k] = j
		case j:
			m.pix[k] = i
		}
	}

	m.invalidate()
	return nil
}

func (m *Image) invalidate() {
	m.rgba = nil
}

// Render returns the image as non-premultiplied RGBA, four bytes per pixel
// in row-major order. The result is memoized until the next mutation and
// must not be modified.
func (m *Image) Render() []byte {
	if m.rgba != nil {
		return m.rgba
	}

	b := make([]byte, 0, 4*len(m.pix))
	for _, v := range m.pix {
		c := m.palette.At(int(v))
		b = append(b, c.R, c.G, c.B, m.trns.Alpha(int(v)))
	}
	m.rgba = b

	return b
}

// NRGBA returns a copy of the rendered image.
func (m *Image) NRGBA() *image.NRGBA {
	dst := image.NewNRGBA(m.Bounds())
	copy(dst.Pix, m.Render())
	return dst
}

// ColorModel returns the palette, with alpha, as a color.Palette.
func (m *Image) ColorModel() color.Model {
	p := make(color.Palette, m.palette.Len())
	for i := range p {
		c := m.palette.At(i)
		p[i] = color.NRGBA{c.R, c.G, c.B, m.trns.Alpha(i)}
	}
	return p
}

// Bounds returns the image rectangle with its origin at (0, 0).
func (m *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.width, m.height)
}

// At returns the color of the pixel at (x, y), or transparent black outside
// the image.
func (m *Image) At(x, y int) color.Color {
	i, err := m.offset(x, y)
	if err != nil {
		return color.NRGBA{}
	}
	v := int(m.pix[i])
	c := m.palette.At(v)
	return color.NRGBA{c.R, c.G, c.B, m.trns.Alpha(v)}
}

// ColorIndexAt returns the palette index of the pixel at (x, y), or 0
// outside the image.
func (m *Image) ColorIndexAt(x, y int) uint8 {
	v, _ := m.Index(x, y)
	return v
}

var _ image.PalettedImage = (*Image)(nil)
