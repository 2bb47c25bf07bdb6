/*
Package indexed implements an editable palette-indexed raster image.

An Image holds a grid of palette indices, a palette of at most 256 RGB colors
and a transparency table giving the alpha of each palette entry. The
transparency table may be shorter than the palette, missing entries are fully
opaque, and it is kept free of trailing opaque entries.

Mutating methods check their arguments and return an error wrapping
ErrContract rather than clamping them. Such an error means the caller allowed
an invalid selection; it never leaves the image modified.
*/
package indexed

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// MaxColors is the capacity of the palette and the transparency table.
	MaxColors = 256

	// Opaque is the alpha of a palette entry without a transparency entry.
	Opaque = 0xff

	// DefaultSize is the width and height of a new blank image.
	DefaultSize = 16
)

var (
	// ErrContract is wrapped by every error caused by invalid arguments.
	ErrContract = errors.New("indexed: contract violation")

	// ErrIndexRange means a palette index is not less than the palette
	// length.
	ErrIndexRange = fmt.Errorf("%w: palette index out of range", ErrContract)
	// ErrPaletteFull means the palette already holds MaxColors entries.
	ErrPaletteFull = fmt.Errorf("%w: palette is full", ErrContract)
	// ErrBounds means a pixel coordinate lies outside the image.
	ErrBounds = fmt.Errorf("%w: coordinates out of bounds", ErrContract)
	// ErrDimensions means a width or height is less than one.
	ErrDimensions = fmt.Errorf("%w: invalid dimensions", ErrContract)
	// ErrPixelCount means a pixel buffer does not match the dimensions.
	ErrPixelCount = fmt.Errorf("%w: pixel count does not match dimensions", ErrContract)
	// ErrTransparencyLength means a transparency table is longer than the
	// palette.
	ErrTransparencyLength = fmt.Errorf("%w: transparency table longer than palette", ErrContract)
)

// IsContractViolation reports whether err was caused by invalid arguments
// rather than by the environment.
func IsContractViolation(err error) bool {
	return errors.Is(err, ErrContract)
}

// RGB is a palette entry.
type RGB struct {
	R, G, B uint8
}

func (c RGB) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseRGB parses a color written as #RGB or #RRGGBB.
func ParseRGB(s string) (RGB, error) {
	if !strings.HasPrefix(s, "#") || (len(s) != 4 && len(s) != 7) {
		return RGB{}, fmt.Errorf("invalid color %q, should be #RGB or #RRGGBB", s)
	}

	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid color %q, %q is not hexadecimal", s, s[1:])
	}

	if len(s) == 4 {
		return RGB{
			R: uint8(v>>8&0xf) * 0x11,
			G: uint8(v>>4&0xf) * 0x11,
			B: uint8(v&0xf) * 0x11,
		}, nil
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}
