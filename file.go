package pngpal

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/bodgit/pngpal/indexed"
	"go.uber.org/multierr"
)

// LoadFile reads a palette-based PNG image from file.
func LoadFile(file string) (*indexed.Image, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := indexed.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return m, nil
}

// writeFile calls fn with a temporary file in the same directory as file
// and renames it over file once fn and the flush both succeed. On failure
// file is left as it was.
func writeFile(file string, fn func(io.Writer) error) (err error) {
	dir, base := filepath.Split(file)
	if dir == "" {
		dir = "."
	}

	f, err := os.CreateTemp(dir, "."+base+".*")
	if err != nil {
		return fmt.Errorf("could not create temporary file for %q: %w", file, err)
	}
	tmp := f.Name()

	defer func() {
		if err != nil {
			err = multierr.Append(err, f.Close())
			_ = os.Remove(tmp)
			return
		}
		if err = f.Close(); err != nil {
			_ = os.Remove(tmp)
			return
		}
		if err = os.Rename(tmp, file); err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if err = fn(f); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("could not flush %q: %w", tmp, err)
	}
	return f.Chmod(0644)
}

// SaveFile writes m to file as an 8-bit indexed-color PNG. An existing file
// is replaced only once the whole image has been written.
func SaveFile(file string, m *indexed.Image) error {
	return writeFile(file, m.Encode)
}

// writeImage writes m to file using an image encoder such as png.Encode
// from the standard library.
func writeImage(file string, m image.Image, encode func(io.Writer, image.Image) error) error {
	return writeFile(file, func(w io.Writer) error {
		return encode(w, m)
	})
}
