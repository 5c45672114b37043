// Package merge unifies the per-source daily batch files into one dataset.
package merge

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/IshaanNene/NewsLens/internal/config"
	"github.com/IshaanNene/NewsLens/internal/observability"
	"github.com/IshaanNene/NewsLens/internal/storage"
	"github.com/IshaanNene/NewsLens/internal/types"
)

// Result describes one merge.
type Result struct {
	Date     string
	Articles []*types.Article
	Files    []string
	Skipped  []string

	// Archived is false when the dated snapshot already existed.
	Archived    bool
	LatestPath  string
	ArchivePath string
}

// Merger concatenates a day's batch files.
type Merger struct {
	data    config.DataConfig
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a Merger over the configured data layout.
func New(data config.DataConfig, metrics *observability.Metrics, logger *slog.Logger) *Merger {
	return &Merger{
		data:    data,
		metrics: metrics,
		logger:  logger.With("component", "merger"),
	}
}

// Merge unions every batch file for date (YYYY-MM-DD), rewrites the latest
// snapshot and creates the dated archive if it does not exist yet. Rows are
// kept as they are, in file name order. Unreadable files are skipped; a file
// whose columns differ from the article schema fails the merge.
func (m *Merger) Merge(date string) (*Result, error) {
	res := &Result{
		Date:        date,
		Articles:    []*types.Article{},
		LatestPath:  m.data.LatestPath(),
		ArchivePath: m.data.ArchivePath(date),
	}

	files, err := m.dailyFiles(date)
	if err != nil {
		return nil, err
	}

	for _, path := range files {
		articles, err := storage.ReadArticles(path)
		if errors.Is(err, types.ErrSchemaMismatch) {
			return nil, fmt.Errorf("merge %s: %w", filepath.Base(path), err)
		}
		if err != nil {
			m.logger.Warn("skipping unreadable daily file", "file", path, "error", err)
			m.metrics.MergeFilesSkipped.Inc()
			res.Skipped = append(res.Skipped, path)
			continue
		}
		res.Files = append(res.Files, path)
		res.Articles = append(res.Articles, articles...)
	}

	if err := storage.WriteArticles(res.LatestPath, res.Articles); err != nil {
		return nil, fmt.Errorf("write latest snapshot: %w", err)
	}

	archived, err := writeArchive(res.ArchivePath, res.Articles)
	if err != nil {
		return nil, fmt.Errorf("write archive snapshot: %w", err)
	}
	res.Archived = archived
	if !archived {
		m.logger.Debug("archive already exists, left untouched", "path", res.ArchivePath)
	}

	m.metrics.MergedRows.Set(float64(len(res.Articles)))
	m.logger.Info("merge complete",
		"date", date,
		"files", len(res.Files),
		"skipped", len(res.Skipped),
		"rows", len(res.Articles),
	)
	return res, nil
}

// dailyFiles lists the committed batch files for date, sorted by name.
func (m *Merger) dailyFiles(date string) ([]string, error) {
	dir := m.data.DailyDir()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &types.StorageError{Path: dir, Err: err}
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, date) || !strings.HasSuffix(name, ".csv") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

// writeArchive creates path with the articles unless it already exists.
// The content is staged in a temporary file and hard-linked into place, so
// the archive appears complete and an existing one is never replaced.
func writeArchive(path string, articles []*types.Article) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	staged := path + ".staged"
	if err := storage.WriteArticles(staged, articles); err != nil {
		return false, err
	}
	defer os.Remove(staged)

	if err := os.Link(staged, path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		if err := copyExclusive(staged, path); err != nil {
			if errors.Is(err, os.ErrExist) {
				return false, nil
			}
			return false, err
		}
	}
	return true, nil
}

// copyExclusive is the fallback for file systems without hard links.
func copyExclusive(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
