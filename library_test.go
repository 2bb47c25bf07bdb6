package pngpal

import (
	"path/filepath"
	"testing"

	"github.com/bodgit/pngpal/indexed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	testColors = []indexed.RGB{{R: 255}, {G: 255}, {B: 255}}
	testOther  = []indexed.RGB{{R: 1, G: 2, B: 3}, {R: 4, G: 5, B: 6}}
)

func newTestLibrary(t *testing.T) *Library {
	t.Helper()
	l, err := OpenLibrary(filepath.Join(t.TempDir(), "library.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		l.Close()
	})
	return l
}

func TestLibraryAddPalette(t *testing.T) {
	l := newTestLibrary(t)

	id1, err := l.AddPalette(testColors, []uint8{128})
	require.NoError(t, err)
	id2, err := l.AddPalette(testColors, []uint8{128})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	id3, err := l.AddPalette(testColors, nil)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)

	id4, err := l.AddPalette(testOther, nil)
	require.NoError(t, err)
	assert.NotEqual(t, id3, id4)

	entries, err := l.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, id1, entries[0].ID)
	assert.Equal(t, testColors, entries[0].Colors)
	assert.Equal(t, []uint8{128}, entries[0].Transparency)
	assert.Equal(t, testColors, entries[1].Colors)
	assert.Empty(t, entries[1].Transparency)
	assert.Equal(t, testOther, entries[2].Colors)
	assert.Len(t, entries[0].SHA1, 40)
	assert.NotEqual(t, entries[0].SHA1, entries[1].SHA1)
}

func TestLibraryAddPaletteErrors(t *testing.T) {
	l := newTestLibrary(t)

	_, err := l.AddPalette(nil, nil)
	assert.Error(t, err)

	_, err = l.AddPalette(make([]indexed.RGB, indexed.MaxColors+1), nil)
	assert.Error(t, err)

	_, err = l.AddPalette(testOther, []uint8{1, 2, 3})
	assert.ErrorIs(t, err, indexed.ErrTransparencyLength)
}

func TestLibraryNames(t *testing.T) {
	l := newTestLibrary(t)

	e, err := l.FindByName("primary")
	require.NoError(t, err)
	assert.Nil(t, e)

	id1, err := l.AddPalette(testColors, nil)
	require.NoError(t, err)
	require.NoError(t, l.SetName(id1, "primary"))

	e, err = l.FindByName("primary")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, id1, e.ID)
	assert.Equal(t, "primary", e.Name)
	assert.Equal(t, testColors, e.Colors)

	// Naming another palette moves the name
	id2, err := l.AddPalette(testOther, nil)
	require.NoError(t, err)
	require.NoError(t, l.SetName(id2, "primary"))

	e, err = l.FindByName("primary")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, id2, e.ID)

	entries, err := l.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Empty(t, entries[0].Name)
	assert.Equal(t, "primary", entries[1].Name)
}

func TestLibrarySources(t *testing.T) {
	l := newTestLibrary(t)

	id1, err := l.AddPalette(testColors, nil)
	require.NoError(t, err)
	id2, err := l.AddPalette(testOther, nil)
	require.NoError(t, err)

	require.NoError(t, l.AddSource(id1, "/a.png"))
	require.NoError(t, l.AddSource(id1, "/b.png"))
	require.NoError(t, l.AddSource(id1, "/b.png"))
	require.NoError(t, l.AddSource(id2, "/c.png"))

	entries, err := l.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 2, entries[0].Sources)
	assert.Equal(t, 1, entries[1].Sources)

	// A file whose palette changed moves to the new palette
	require.NoError(t, l.AddSource(id2, "/a.png"))

	entries, err = l.Entries()
	require.NoError(t, err)
	assert.Equal(t, 1, entries[0].Sources)
	assert.Equal(t, 2, entries[1].Sources)
}

func TestLibraryReopen(t *testing.T) {
	file := filepath.Join(t.TempDir(), "library.db")

	l, err := OpenLibrary(file, zap.NewNop())
	require.NoError(t, err)
	id, err := l.AddPalette(testColors, nil)
	require.NoError(t, err)
	require.NoError(t, l.SetName(id, "primary"))
	require.NoError(t, l.Close())

	l, err = OpenLibrary(file, zap.NewNop())
	require.NoError(t, err)
	defer l.Close()

	e, err := l.FindByName("primary")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, id, e.ID)
}
