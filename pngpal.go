/*
Package pngpal is a library for editing palette-based PNG images.

An Editor owns one image for the length of an editing session. A Session
reads editing commands and applies them to the Editor's image. A Library
catalogues palettes in a SQLite database, either imported from palette
files or collected by scanning a directory tree of PNG images.
*/
package pngpal

import (
	stdpng "image/png"

	"github.com/bodgit/pngpal/indexed"
	"go.uber.org/zap"
)

// Editor owns an image and the file it was loaded from.
type Editor struct {
	image  *indexed.Image
	path   string
	logger *zap.Logger
}

// NewEditor returns an editor for m, saved to path by default.
func NewEditor(m *indexed.Image, path string, logger *zap.Logger) *Editor {
	return &Editor{
		image:  m,
		path:   path,
		logger: logger,
	}
}

// Open loads the image at path into a new editor.
func Open(path string, logger *zap.Logger) (*Editor, error) {
	m, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	logger.Info("loaded image",
		zap.String("file", path),
		zap.Int("width", m.Width()),
		zap.Int("height", m.Height()),
		zap.Int("colors", m.PaletteLen()),
		zap.Int("transparency", len(m.Transparency())))

	return NewEditor(m, path, logger), nil
}

// Image returns the image being edited.
func (e *Editor) Image() *indexed.Image {
	return e.image
}

// Path returns the default destination of Save.
func (e *Editor) Path() string {
	return e.path
}

// Save writes the image to path, or to the file it was loaded from if path
// is empty. A failed save leaves the image untouched.
func (e *Editor) Save(path string) error {
	if path == "" {
		path = e.path
	}
	if err := SaveFile(path, e.image); err != nil {
		e.logger.Error("could not save image", zap.String("file", path), zap.Error(err))
		return err
	}
	e.logger.Info("saved image", zap.String("file", path))
	return nil
}

// Render writes the rendered image to path as a true-color PNG.
func (e *Editor) Render(path string) error {
	if err := writeImage(path, e.image.NRGBA(), stdpng.Encode); err != nil {
		e.logger.Error("could not render image", zap.String("file", path), zap.Error(err))
		return err
	}
	e.logger.Debug("rendered image", zap.String("file", path))
	return nil
}
