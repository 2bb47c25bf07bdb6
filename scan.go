package pngpal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bodgit/pngpal/indexed"
	"github.com/bodgit/pngpal/png"
	"go.uber.org/zap"
)

func findImages(ctx context.Context, base string) (<-chan string, <-chan error) {
	out := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		errc <- filepath.Walk(base, func(file string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			// Ignore any hidden files or directories
			if file != base && info.Name()[0] == '.' {
				if info.Mode().IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if !info.Mode().IsRegular() || !strings.EqualFold(filepath.Ext(file), ".png") {
				return nil
			}

			select {
			case out <- file:
			case <-ctx.Done():
				return errors.New("walk cancelled")
			}

			return nil
		})
	}()
	return out, errc
}

func readConfig(file string) (png.Config, error) {
	f, err := os.Open(file)
	if err != nil {
		return png.Config{}, err
	}
	defer f.Close()

	return png.DecodeConfig(f)
}

func (l *Library) imageWorker(ctx context.Context, in <-chan string, count *int64) <-chan error {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		for file := range in {
			config, err := readConfig(file)
			if err != nil {
				var unsupported png.UnsupportedError
				var format png.FormatError
				switch {
				case errors.As(err, &unsupported):
					l.logger.Debug("skipping image", zap.String("file", file), zap.Error(err))
					continue
				case errors.As(err, &format):
					l.logger.Warn("skipping invalid image", zap.String("file", file), zap.Error(err))
					continue
				}
				errc <- err
				return
			}

			colors := decodeColors(config.Palette)
			if len(config.Transparency) > len(colors) || len(colors) > indexed.MaxColors {
				l.logger.Warn("skipping invalid palette", zap.String("file", file))
				continue
			}

			// Stored canonically so equal palettes share an entry
			trns := config.Transparency
			for len(trns) > 0 && trns[len(trns)-1] == indexed.Opaque {
				trns = trns[:len(trns)-1]
			}

			id, err := l.AddPalette(colors, trns)
			if err != nil {
				errc <- err
				return
			}
			if err := l.AddSource(id, file); err != nil {
				errc <- err
				return
			}
			atomic.AddInt64(count, 1)

			select {
			case <-ctx.Done():
				return
			default:
			}
		}
	}()
	return errc
}

// waitForPipeline returns the first error from errs, calling cancel as soon
// as it arrives. It only returns once every channel is closed.
func waitForPipeline(cancel context.CancelFunc, errs ...<-chan error) error {
	var first error
	for err := range mergeErrors(errs...) {
		if err != nil && first == nil {
			first = err
			cancel()
		}
	}
	return first
}

func mergeErrors(cs ...<-chan error) <-chan error {
	var wg sync.WaitGroup
	out := make(chan error, len(cs))
	wg.Add(len(cs))
	for _, c := range cs {
		go func(c <-chan error) {
			for n := range c {
				out <- n
			}
			wg.Done()
		}(c)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// Scan walks the directory tree at path and records the palette of every
// palette-based PNG image found, using the given number of workers. Images
// that are not palette-based or are corrupt are skipped. It returns the
// number of images recorded.
func (l *Library) Scan(path string, workers int) (int, error) {
	dir, err := filepath.Abs(path)
	if err != nil {
		return 0, err
	}
	if workers < 1 {
		workers = 1
	}

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	var errcList []<-chan error

	files, errc := findImages(ctx, dir)
	errcList = append(errcList, errc)

	var count int64
	for i := 0; i < workers; i++ {
		errcList = append(errcList, l.imageWorker(ctx, files, &count))
	}

	err = waitForPipeline(cancelFunc, errcList...)

	n := atomic.LoadInt64(&count)
	l.logger.Info("scanned directory", zap.String("dir", dir), zap.Int64("images", n), zap.Error(err))

	return int(n), err
}
