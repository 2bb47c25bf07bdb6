package pngpal

import (
	"fmt"
	"io"
	"os"

	"github.com/bodgit/pngpal/indexed"
	"github.com/bodgit/pngpal/palfile"
	"go.uber.org/zap"
)

// ReplacePalette returns a copy of m using colors and trns as its palette
// and transparency table. The new palette must cover every index used by a
// pixel of m.
func ReplacePalette(m *indexed.Image, colors []indexed.RGB, trns []uint8) (*indexed.Image, error) {
	highest := -1
	for _, v := range m.Pix() {
		if int(v) > highest {
			highest = int(v)
		}
	}
	if highest >= len(colors) {
		return nil, fmt.Errorf("palette of %d colors does not cover index %d used by the image", len(colors), highest)
	}

	return indexed.NewFromParts(m.Width(), m.Height(), m.Pix(), colors, trns)
}

// ReadPaletteFile reads the colors of a RIFF palette file.
func ReadPaletteFile(file string) ([]indexed.RGB, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := palfile.Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return p.Colors, nil
}

// ExportPalette writes the palette of m to file as a RIFF palette file.
// Transparency is not part of the format and is lost.
func ExportPalette(m *indexed.Image, file string) error {
	b, err := palfile.New(m.Palette()).MarshalBinary()
	if err != nil {
		return err
	}
	return writeFile(file, func(w io.Writer) error {
		_, err := w.Write(b)
		return err
	})
}

// Import stores the palette in a RIFF palette file under name and returns
// its id.
func (l *Library) Import(name, file string) (int64, error) {
	colors, err := ReadPaletteFile(file)
	if err != nil {
		return 0, err
	}

	id, err := l.AddPalette(colors, nil)
	if err != nil {
		return 0, err
	}
	if err := l.SetName(id, name); err != nil {
		return 0, err
	}

	l.logger.Info("imported palette", zap.String("name", name), zap.String("file", file), zap.Int64("id", id))

	return id, nil
}

// Apply returns a copy of m using the library palette called name.
func (l *Library) Apply(name string, m *indexed.Image) (*indexed.Image, error) {
	e, err := l.FindByName(name)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("no palette named %q", name)
	}

	return ReplacePalette(m, e.Colors, e.Transparency)
}
