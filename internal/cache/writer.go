// Package cache persists harvested records as flat files in a cache
// directory and reads them back.
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/JakeFAU/etym-crawler/internal/crawler"
	"github.com/JakeFAU/etym-crawler/internal/metrics"
)

// Writer writes every batch to a new, uniquely named file under dir.
// It is safe for concurrent use.
type Writer struct {
	fs     afero.Fs
	dir    string
	ids    crawler.IDGenerator
	logger *zap.Logger
}

var _ crawler.BatchWriter = (*Writer)(nil)

// New creates a Writer rooted at dir.
func New(fs afero.Fs, dir string, ids crawler.IDGenerator, logger *zap.Logger) (*Writer, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("cache directory is required")
	}
	if fs == nil {
		return nil, errors.New("filesystem is required")
	}
	if ids == nil {
		return nil, errors.New("id generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		fs:     fs,
		dir:    filepath.Clean(dir),
		ids:    ids,
		logger: logger.Named("cache"),
	}, nil
}

// Reset removes the cache directory with everything in it and recreates it empty.
func (w *Writer) Reset() error {
	if err := w.fs.RemoveAll(w.dir); err != nil {
		return crawler.IOError(w.dir, fmt.Errorf("remove cache dir: %w", err))
	}
	if err := w.fs.MkdirAll(w.dir, 0o750); err != nil {
		return crawler.IOError(w.dir, fmt.Errorf("create cache dir: %w", err))
	}
	w.logger.Info("cache directory reset", zap.String("dir", w.dir))
	return nil
}

// WriteBatch writes records to a fresh file and returns its name. An empty
// batch writes nothing and returns an empty name. Existing files are never
// overwritten.
func (w *Writer) WriteBatch(ctx context.Context, records []crawler.Record) (string, error) {
	if len(records) == 0 {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", crawler.IOError(w.dir, err)
	}
	name, err := w.ids.NewID()
	if err != nil {
		return "", crawler.IOError(w.dir, err)
	}
	path := filepath.Join(w.dir, name)

	f, err := w.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		metrics.ObserveBatch(metrics.StatusFailed)
		return "", crawler.IOError(path, fmt.Errorf("create batch file: %w", err))
	}
	if _, err := f.Write(Encode(records)); err != nil {
		_ = f.Close()
		metrics.ObserveBatch(metrics.StatusFailed)
		return "", crawler.IOError(path, fmt.Errorf("write batch file: %w", err))
	}
	if err := f.Close(); err != nil {
		metrics.ObserveBatch(metrics.StatusFailed)
		return "", crawler.IOError(path, fmt.Errorf("close batch file: %w", err))
	}
	metrics.ObserveBatch(metrics.StatusSucceeded)
	w.logger.Debug("batch written", zap.String("file", name), zap.Int("records", len(records)))
	return name, nil
}

// File is one cache file read back from disk.
type File struct {
	Name    string
	Records []crawler.Record
}

// ReadAll loads every regular file in dir, sorted by name.
func ReadAll(fs afero.Fs, dir string) ([]File, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, crawler.IOError(dir, fmt.Errorf("read cache dir: %w", err))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	files := make([]File, 0, len(entries))
	for _, entry := range entries {
		if !entry.Mode().IsRegular() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, crawler.IOError(path, fmt.Errorf("read batch file: %w", err))
		}
		files = append(files, File{Name: entry.Name(), Records: Decode(data)})
	}
	return files, nil
}
