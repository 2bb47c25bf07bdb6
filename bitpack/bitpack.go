/*
Package bitpack converts between scanline-aligned packed samples and one
byte per sample.

Samples narrower than a byte are stored most significant bits first, so the
leftmost pixel of a scanline occupies the highest-order bits of the first
byte. Each scanline starts on a byte boundary; any bits left over in the last
byte of a scanline are padding.
*/
package bitpack

import "errors"

var (
	// ErrUnsupportedDepth is returned for 16-bit samples, which have no
	// one byte per sample representation.
	ErrUnsupportedDepth = errors.New("bitpack: 16-bit samples are not supported")
	// ErrInvalidDepth is returned for depths other than 1, 2, 4, 8 and 16.
	ErrInvalidDepth = errors.New("bitpack: invalid bit depth")
	// ErrInvalidWidth is returned when the scanline width is less than one
	// sample.
	ErrInvalidWidth = errors.New("bitpack: invalid scanline width")
)

func checkDepth(depth int) error {
	switch depth {
	case 1, 2, 4, 8:
		return nil
	case 16:
		return ErrUnsupportedDepth
	default:
		return ErrInvalidDepth
	}
}

// RowBytes returns the number of bytes used by one packed scanline of width
// samples.
func RowBytes(depth, width int) int {
	return (width*depth + 7) >> 3
}

// Unpack expands packed samples of the given depth into one byte per
// sample, dropping the padding at the end of each scanline of width
// samples. A depth of 8 returns a copy of packed.
func Unpack(packed []byte, depth, width int) ([]byte, error) {
	if err := checkDepth(depth); err != nil {
		return nil, err
	}
	if len(packed) == 0 {
		return []byte{}, nil
	}
	if width < 1 {
		return nil, ErrInvalidWidth
	}

	if depth == 8 {
		out := make([]byte, len(packed))
		copy(out, packed)
		return out, nil
	}

	perByte := 8 / depth
	mask := byte(1<<uint(depth) - 1)

	out := make([]byte, 0, len(packed)/RowBytes(depth, width)*width+width)

	var pos int
	for _, b := range packed {
		n := perByte
		if rest := width - pos; rest < n {
			n = rest
		}
		for i := 0; i < n; i++ {
			shift := uint((perByte - i - 1) * depth)
			out = append(out, b>>shift&mask)
		}
		if pos += n; pos >= width {
			pos = 0
		}
	}

	return out, nil
}

// Pack is the inverse of Unpack. Each sample is masked to depth bits and the
// padding bits at the end of every scanline are zero. The final scanline may
// be short, in which case it is padded the same way.
func Pack(samples []byte, depth, width int) ([]byte, error) {
	if err := checkDepth(depth); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return []byte{}, nil
	}
	if width < 1 {
		return nil, ErrInvalidWidth
	}

	stride := RowBytes(depth, width)
	rows := (len(samples) + width - 1) / width
	out := make([]byte, rows*stride)

	if depth == 8 {
		for y := 0; y < rows; y++ {
			end := (y + 1) * width
			if end > len(samples) {
				end = len(samples)
			}
			copy(out[y*stride:], samples[y*width:end])
		}
		return out, nil
	}

	mask := byte(1<<uint(depth) - 1)
	for i, s := range samples {
		y, x := i/width, i%width
		bit := x * depth
		shift := uint(8 - depth - bit&7)
		out[y*stride+bit>>3] |= s & mask << shift
	}

	return out, nil
}
