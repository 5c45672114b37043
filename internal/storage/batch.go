package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/IshaanNene/NewsLens/internal/types"
)

const partialSuffix = ".partial"

var _ Storage = (*BatchWriter)(nil)

// BatchFileName is the daily batch file name for a source.
func BatchFileName(date, source string) string {
	return date + "_" + source + ".csv"
}

// BatchWriter appends articles to one daily batch file. Rows go to a
// ".partial" sibling that is renamed into place on Close, so the merger never
// sees a half-written batch. A run that collects nothing leaves an existing
// batch for the same day untouched.
type BatchWriter struct {
	path    string
	partial string
	file    *os.File
	writer  *csv.Writer
	mu      sync.Mutex
	count   int
	closed  bool
	logger  *slog.Logger
}

// NewBatchWriter opens the batch file for (date, source) under dir.
func NewBatchWriter(dir, date, source string, logger *slog.Logger) (*BatchWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create daily dir: %w", err)
	}

	path := filepath.Join(dir, BatchFileName(date, source))
	partial := path + partialSuffix

	f, err := os.Create(partial)
	if err != nil {
		return nil, &types.StorageError{Path: partial, Err: err}
	}

	w := csv.NewWriter(f)
	if err := w.Write(types.ArticleColumns); err != nil {
		f.Close()
		os.Remove(partial)
		return nil, &types.StorageError{Path: partial, Err: fmt.Errorf("write CSV header: %w", err)}
	}

	return &BatchWriter{
		path:    path,
		partial: partial,
		file:    f,
		writer:  w,
		logger:  logger.With("component", "batch_writer", "path", path),
	}, nil
}

func (s *BatchWriter) Name() string { return "csv" }

// Path returns the committed file path.
func (s *BatchWriter) Path() string { return s.path }

// Count returns the number of rows written so far.
func (s *BatchWriter) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *BatchWriter) Store(articles []*types.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return &types.StorageError{Path: s.path, Err: errors.New("batch already closed")}
	}
	for _, a := range articles {
		if err := s.writer.Write(a.Record()); err != nil {
			return &types.StorageError{Path: s.partial, Err: fmt.Errorf("write CSV row: %w", err)}
		}
		s.count++
	}

	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return &types.StorageError{Path: s.partial, Err: err}
	}
	return nil
}

// Close commits the batch.
func (s *BatchWriter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.writer.Flush()
	werr := s.writer.Error()
	if err := s.file.Close(); err != nil && werr == nil {
		werr = err
	}
	if werr != nil {
		os.Remove(s.partial)
		return &types.StorageError{Path: s.partial, Err: werr}
	}

	if s.count == 0 {
		if _, err := os.Stat(s.path); err == nil {
			os.Remove(s.partial)
			s.logger.Warn("no articles collected, keeping earlier batch")
			return nil
		}
	}

	if err := os.Rename(s.partial, s.path); err != nil {
		os.Remove(s.partial)
		return &types.StorageError{Path: s.path, Err: fmt.Errorf("rename: %w", err)}
	}

	s.logger.Info("batch written", "articles", s.count)
	return nil
}

// Abort discards the batch without committing it.
func (s *BatchWriter) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.file.Close()
	if err := os.Remove(s.partial); err != nil && !os.IsNotExist(err) {
		return &types.StorageError{Path: s.partial, Err: err}
	}
	return nil
}
