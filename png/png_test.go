package png

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	stdpng "image/png"
	"math/rand"
	"testing"

	"github.com/bodgit/pngpal/bitpack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chunk struct {
	name string
	data []byte
}

func ihdr(w, h, depth, ct, interlace int) chunk {
	b := make([]byte, 13)
	binary.BigEndian.PutUint32(b[0:4], uint32(w))
	binary.BigEndian.PutUint32(b[4:8], uint32(h))
	b[8] = byte(depth)
	b[9] = byte(ct)
	b[12] = byte(interlace)
	return chunk{"IHDR", b}
}

func idat(t *testing.T, rows []byte) chunk {
	var b bytes.Buffer
	zw := zlib.NewWriter(&b)
	_, err := zw.Write(rows)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return chunk{"IDAT", b.Bytes()}
}

func build(t *testing.T, chunks ...chunk) []byte {
	var b bytes.Buffer
	b.WriteString(signature)
	e := encoder{w: &b}
	for _, c := range chunks {
		e.writeChunk(c.data, c.name)
	}
	require.NoError(t, e.err)
	return b.Bytes()
}

func grayPalette(n int) []byte {
	p := make([]byte, 0, 3*n)
	for i := 0; i < n; i++ {
		v := byte(i * 255 / n)
		p = append(p, v, v, v)
	}
	return p
}

func randomSamples(r *rand.Rand, n, colors int) []byte {
	s := make([]byte, n)
	for i := range s {
		s[i] = byte(r.Intn(colors))
	}
	return s
}

// Apply filter ft to cur in place of the decoder's unfilter
func filterRow(ft byte, cur, prev []byte) []byte {
	out := make([]byte, len(cur))
	for i := range cur {
		var a, b, c byte
		if i > 0 {
			a, c = cur[i-1], prev[i-1]
		}
		b = prev[i]
		switch ft {
		case ftNone:
			out[i] = cur[i]
		case ftSub:
			out[i] = cur[i] - a
		case ftUp:
			out[i] = cur[i] - b
		case ftAverage:
			out[i] = cur[i] - byte((int(a)+int(b))/2)
		case ftPaeth:
			out[i] = cur[i] - paeth(a, b, c)
		}
	}
	return out
}

func TestDecodeStandardLibraryDepths(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	tables := []struct {
		colors int
		depth  int
	}{
		{2, 1},
		{4, 2},
		{16, 4},
		{256, 8},
	}

	for _, table := range tables {
		for _, size := range []image.Point{{1, 1}, {3, 2}, {13, 7}, {64, 5}} {
			pal := make(color.Palette, table.colors)
			for i := range pal {
				pal[i] = color.NRGBA{uint8(i), uint8(255 - i), uint8(i * 7), 255}
			}
			// Make a couple of entries translucent to get a tRNS chunk
			pal[0] = color.NRGBA{1, 2, 3, 0}
			if table.colors > 2 {
				pal[2] = color.NRGBA{4, 5, 6, 128}
			}

			m := image.NewPaletted(image.Rect(0, 0, size.X, size.Y), pal)
			copy(m.Pix, randomSamples(r, len(m.Pix), table.colors))

			var b bytes.Buffer
			require.NoError(t, stdpng.Encode(&b, m))

			raw, err := Decode(bytes.NewReader(b.Bytes()))
			require.NoError(t, err)

			assert.Equal(t, table.depth, raw.Depth)
			assert.Equal(t, size.X, raw.Width)
			assert.Equal(t, size.Y, raw.Height)
			assert.Equal(t, table.colors, raw.Colors())
			assert.Equal(t, byte(0), raw.Transparency[0])
			if table.colors > 2 {
				assert.Equal(t, []byte{0, 255, 128}, raw.Transparency)
			}

			samples, err := bitpack.Unpack(raw.Pix, raw.Depth, raw.Width)
			require.NoError(t, err)
			assert.Equal(t, m.Pix, samples, "%d colors %v", table.colors, size)
		}
	}
}

func TestDecodeFilters(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	const w, h = 9, 6

	pix := randomSamples(r, w*h, 16)
	packed, err := bitpack.Pack(pix, 4, w)
	require.NoError(t, err)
	stride := bitpack.RowBytes(4, w)

	var rows []byte
	prev := make([]byte, stride)
	for y := 0; y < h; y++ {
		cur := packed[y*stride : (y+1)*stride]
		ft := byte(y % 5)
		rows = append(rows, ft)
		rows = append(rows, filterRow(ft, cur, prev)...)
		prev = cur
	}

	b := build(t,
		ihdr(w, h, 4, ctPaletted, 0),
		chunk{"PLTE", grayPalette(16)},
		idat(t, rows),
		chunk{"IEND", nil},
	)

	raw, err := Decode(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, packed, raw.Pix)
	assert.Empty(t, raw.Transparency)
}

func TestDecodeInterlaced(t *testing.T) {
	r := rand.New(rand.NewSource(3))

	for _, depth := range []int{1, 2, 4, 8} {
		for _, size := range []image.Point{{1, 1}, {5, 3}, {17, 11}} {
			w, h := size.X, size.Y
			pix := randomSamples(r, w*h, 1<<uint(depth))

			var rows []byte
			for _, p := range interlacing {
				pw := (w - p.xOffset + p.xFactor - 1) / p.xFactor
				ph := (h - p.yOffset + p.yFactor - 1) / p.yFactor
				if pw == 0 || ph == 0 {
					continue
				}
				for y := 0; y < ph; y++ {
					s := make([]byte, pw)
					for x := range s {
						s[x] = pix[(p.yOffset+y*p.yFactor)*w+p.xOffset+x*p.xFactor]
					}
					packed, err := bitpack.Pack(s, depth, pw)
					require.NoError(t, err)
					rows = append(rows, ftNone)
					rows = append(rows, packed...)
				}
			}

			colors := 1 << uint(depth)
			b := build(t,
				ihdr(w, h, depth, ctPaletted, 1),
				chunk{"PLTE", grayPalette(colors)},
				idat(t, rows),
				chunk{"IEND", nil},
			)

			raw, err := Decode(bytes.NewReader(b))
			require.NoError(t, err)
			assert.True(t, raw.Interlaced)

			samples, err := bitpack.Unpack(raw.Pix, depth, w)
			require.NoError(t, err)
			assert.Equal(t, pix, samples, "depth %d size %v", depth, size)
		}
	}
}

func TestDecodeMissingPalette(t *testing.T) {
	b := build(t,
		ihdr(2, 1, 8, ctPaletted, 0),
		idat(t, []byte{ftNone, 1, 0}),
		chunk{"IEND", nil},
	)

	raw, err := Decode(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, defaultPalette, raw.Palette)
}

func TestDecodeSkipsAncillaryChunks(t *testing.T) {
	b := build(t,
		ihdr(1, 1, 8, ctPaletted, 0),
		chunk{"gAMA", []byte{0, 0, 0xb1, 0x8f}},
		chunk{"PLTE", grayPalette(2)},
		chunk{"tEXt", []byte("Comment\x00hello")},
		idat(t, []byte{ftNone, 1}),
		chunk{"IEND", nil},
	)

	raw, err := Decode(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, raw.Pix)
}

func TestDecodeErrors(t *testing.T) {
	rgba := new(bytes.Buffer)
	require.NoError(t, stdpng.Encode(rgba, image.NewRGBA(image.Rect(0, 0, 2, 2))))

	badCRC := build(t,
		ihdr(1, 1, 8, ctPaletted, 0),
		chunk{"PLTE", grayPalette(2)},
		idat(t, []byte{ftNone, 0}),
		chunk{"IEND", nil},
	)
	badCRC[8+8+13]++

	// Flip the Adler-32 trailer, the chunk CRC is recomputed by build
	badAdler := idat(t, []byte{ftNone, 0})
	badAdler.data[len(badAdler.data)-1] ^= 0xff

	// A length of almost 2 GiB backed by three bytes
	hugeChunk := append(build(t, ihdr(1, 1, 8, ctPaletted, 0)), 0x7f, 0xff, 0xff, 0xf0, 'P', 'L', 'T', 'E', 1, 2, 3)

	tables := []struct {
		name  string
		input []byte
		err   error
	}{
		{
			"not png",
			[]byte("GIF89a......"),
			FormatError("not a PNG file"),
		},
		{
			"truecolor",
			rgba.Bytes(),
			UnsupportedError("color type 6, image must be palette-based"),
		},
		{
			"16-bit",
			build(t, ihdr(1, 1, 16, ctPaletted, 0)),
			UnsupportedError("16-bit palette"),
		},
		{
			"bad depth",
			build(t, ihdr(1, 1, 3, ctPaletted, 0)),
			FormatError("bit depth 3"),
		},
		{
			"zero width",
			build(t, ihdr(0, 1, 8, ctPaletted, 0)),
			FormatError("invalid dimensions"),
		},
		{
			"checksum",
			badCRC,
			FormatError("invalid checksum in IHDR"),
		},
		{
			"tRNS too long",
			build(t,
				ihdr(1, 1, 8, ctPaletted, 0),
				chunk{"PLTE", grayPalette(2)},
				chunk{"tRNS", []byte{0, 0, 0}},
			),
			FormatError("bad tRNS length"),
		},
		{
			"PLTE length",
			build(t,
				ihdr(1, 1, 8, ctPaletted, 0),
				chunk{"PLTE", []byte{1, 2}},
			),
			FormatError("bad PLTE length"),
		},
		{
			"unknown critical chunk",
			build(t,
				ihdr(1, 1, 8, ctPaletted, 0),
				chunk{"ABCD", nil},
			),
			UnsupportedError("critical chunk ABCD"),
		},
		{
			"missing IHDR",
			build(t, chunk{"PLTE", grayPalette(2)}),
			FormatError("chunk out of order"),
		},
		{
			"short pixel data",
			build(t,
				ihdr(4, 4, 8, ctPaletted, 0),
				chunk{"PLTE", grayPalette(2)},
				idat(t, []byte{ftNone, 0, 0, 0, 0}),
				chunk{"IEND", nil},
			),
			FormatError("not enough pixel data"),
		},
		{
			"bad filter",
			build(t,
				ihdr(1, 1, 8, ctPaletted, 0),
				chunk{"PLTE", grayPalette(2)},
				idat(t, []byte{9, 0}),
				chunk{"IEND", nil},
			),
			FormatError("bad filter type"),
		},
		{
			"truncated",
			build(t, ihdr(1, 1, 8, ctPaletted, 0))[:20],
			FormatError("truncated chunk"),
		},
		{
			"huge chunk",
			hugeChunk,
			FormatError("truncated chunk"),
		},
		{
			"zlib checksum",
			build(t,
				ihdr(1, 1, 8, ctPaletted, 0),
				chunk{"PLTE", grayPalette(2)},
				badAdler,
				chunk{"IEND", nil},
			),
			FormatError("invalid checksum in zlib stream"),
		},
		{
			"surplus rows",
			build(t,
				ihdr(1, 1, 8, ctPaletted, 0),
				chunk{"PLTE", grayPalette(2)},
				idat(t, []byte{ftNone, 0, ftNone, 1}),
				chunk{"IEND", nil},
			),
			FormatError("too much pixel data"),
		},
		{
			"surplus interlaced rows",
			build(t,
				ihdr(1, 1, 8, ctPaletted, 1),
				chunk{"PLTE", grayPalette(2)},
				idat(t, []byte{ftNone, 0, ftNone, 0}),
				chunk{"IEND", nil},
			),
			FormatError("too much pixel data"),
		},
		{
			"corrupt deflate",
			build(t,
				ihdr(1, 1, 8, ctPaletted, 0),
				chunk{"PLTE", grayPalette(2)},
				// Valid zlib header, then a reserved block type
				chunk{"IDAT", []byte{0x78, 0x9c, 0xff, 0xff, 0xff, 0xff}},
				chunk{"IEND", nil},
			),
			FormatError("corrupt zlib stream"),
		},
	}

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(table.input))
			assert.Equal(t, table.err, err)
		})
	}
}

func TestDecodeConfig(t *testing.T) {
	b := build(t,
		ihdr(7, 3, 2, ctPaletted, 0),
		chunk{"PLTE", grayPalette(3)},
		chunk{"tRNS", []byte{10}},
		// Pixel data is never inspected
		chunk{"IDAT", []byte("garbage")},
	)

	c, err := DecodeConfig(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, Config{
		Width:        7,
		Height:       3,
		Depth:        2,
		Palette:      grayPalette(3),
		Transparency: []byte{10},
	}, c)
}

func TestEncode(t *testing.T) {
	raw := &Raw{
		Config: Config{
			Width:        3,
			Height:       2,
			Depth:        8,
			Palette:      []byte{255, 0, 0, 0, 255, 0, 0, 0, 255},
			Transparency: []byte{255, 0},
		},
		Pix: []byte{0, 1, 2, 2, 1, 0},
	}

	var b bytes.Buffer
	require.NoError(t, Encode(&b, raw))

	// The standard library agrees on the result
	m, err := stdpng.Decode(bytes.NewReader(b.Bytes()))
	require.NoError(t, err)
	pm, ok := m.(*image.Paletted)
	require.True(t, ok)
	assert.Equal(t, raw.Pix, pm.Pix)
	assert.Equal(t, color.Palette{
		color.NRGBA{255, 0, 0, 255},
		color.NRGBA{0, 255, 0, 0},
		color.RGBA{0, 0, 255, 255},
	}, pm.Palette)

	got, err := Decode(bytes.NewReader(b.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestEncodeRowsUnfiltered(t *testing.T) {
	raw := &Raw{
		Config: Config{Width: 2, Height: 3, Depth: 8, Palette: grayPalette(4)},
		Pix:    []byte{0, 1, 2, 3, 3, 2},
	}

	var b bytes.Buffer
	require.NoError(t, Encode(&b, raw))

	d := decoder{}
	d.r = bytes.NewReader(b.Bytes())
	d.crc = crc32.NewIEEE()
	require.NoError(t, d.checkHeader())

	var compressed []byte
	for {
		name, data, err := d.readChunk()
		require.NoError(t, err)
		if name == "IHDR" {
			assert.Equal(t, byte(8), data[8])
			assert.Equal(t, byte(0), data[11])
		}
		if name == "tRNS" {
			t.Fatal("unexpected tRNS chunk")
		}
		if name == "IDAT" {
			compressed = append(compressed, data...)
		}
		if name == "IEND" {
			break
		}
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	require.NoError(t, err)
	var rows bytes.Buffer
	_, err = rows.ReadFrom(zr)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 1, 0, 2, 3, 0, 3, 2}, rows.Bytes())
}

func TestEncodeErrors(t *testing.T) {
	good := func() *Raw {
		return &Raw{
			Config: Config{Width: 1, Height: 1, Depth: 8, Palette: grayPalette(2)},
			Pix:    []byte{0},
		}
	}

	raw := good()
	raw.Depth = 4
	assert.Equal(t, UnsupportedError("bit depth 4, only 8-bit output is written"), Encode(new(bytes.Buffer), raw))

	raw = good()
	raw.Transparency = []byte{1, 2, 3}
	assert.Equal(t, FormatError("transparency table longer than palette"), Encode(new(bytes.Buffer), raw))

	raw = good()
	raw.Pix = nil
	assert.Equal(t, FormatError("pixel data does not match dimensions"), Encode(new(bytes.Buffer), raw))

	raw = good()
	raw.Palette = nil
	assert.Equal(t, FormatError("bad palette length"), Encode(new(bytes.Buffer), raw))
}
