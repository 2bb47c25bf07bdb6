package pngpal

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	stdpng "image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bodgit/pngpal/indexed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGray(t *testing.T, file string) {
	t.Helper()
	f, err := os.Create(file)
	require.NoError(t, err)
	defer f.Close()

	m := image.NewGray(image.Rect(0, 0, 2, 2))
	m.SetGray(1, 1, color.Gray{Y: 200})
	require.NoError(t, stdpng.Encode(f, m))
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	for _, d := range []string{"sub", ".hidden"} {
		require.NoError(t, os.Mkdir(filepath.Join(dir, d), 0755))
	}

	opaque, err := indexed.NewFromParts(2, 1, []uint8{0, 1}, testOther, []uint8{255, 255})
	require.NoError(t, err)

	require.NoError(t, SaveFile(filepath.Join(dir, "a.png"), newTestImage(t)))
	require.NoError(t, SaveFile(filepath.Join(dir, "sub", "b.PNG"), newTestImage(t)))
	require.NoError(t, SaveFile(filepath.Join(dir, "sub", "c.png"), opaque))
	require.NoError(t, SaveFile(filepath.Join(dir, ".hidden", "d.png"), newTestImage(t)))
	require.NoError(t, SaveFile(filepath.Join(dir, ".e.png"), newTestImage(t)))
	writeGray(t, filepath.Join(dir, "gray.png"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("garbage"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not an image"), 0644))

	l := newTestLibrary(t)
	n, err := l.Scan(dir, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	entries, err := l.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var shared, single *Entry
	for i := range entries {
		switch entries[i].Sources {
		case 2:
			shared = &entries[i]
		case 1:
			single = &entries[i]
		}
	}
	require.NotNil(t, shared)
	require.NotNil(t, single)
	assert.Equal(t, testColors, shared.Colors)
	assert.Equal(t, []uint8{128}, shared.Transparency)
	assert.Equal(t, testOther, single.Colors)
	assert.Empty(t, single.Transparency)

	// Rescanning finds the same files and adds nothing
	n, err = l.Scan(dir, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	entries, err = l.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestScanMissingDirectory(t *testing.T) {
	l := newTestLibrary(t)
	_, err := l.Scan(filepath.Join(t.TempDir(), "missing"), 2)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestScanStoreFailure(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 8; i++ {
		require.NoError(t, SaveFile(filepath.Join(dir, fmt.Sprintf("%d.png", i)), newTestImage(t)))
	}

	l := newTestLibrary(t)
	require.NoError(t, l.Close())

	n, err := l.Scan(dir, 3)
	assert.EqualError(t, err, "sql: database is closed")
	assert.Equal(t, 0, n)
}

func TestWaitForPipelineWaitsForAllStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	failed := make(chan error, 1)
	failed <- errors.New("stage failed")
	close(failed)

	// Only stops once cancelled, and takes a while to do so
	var stopped int32
	slow := make(chan error)
	go func() {
		defer close(slow)
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		atomic.StoreInt32(&stopped, 1)
	}()

	err := waitForPipeline(cancel, failed, slow)
	assert.EqualError(t, err, "stage failed")
	assert.Equal(t, int32(1), atomic.LoadInt32(&stopped))
}
