package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/IshaanNene/NewsLens/internal/types"
)

// Table is a CSV file whose header has been checked against a schema.
// Index maps each column name to its position in Rows.
type Table struct {
	Index map[string]int
	Rows  [][]string
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// ReadTable reads a CSV file with a header row. The header may list the
// schema columns in any order but must contain exactly that set; anything
// else fails with types.ErrSchemaMismatch. An empty file is an empty table.
func ReadTable(path string, schema []string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &types.StorageError{Path: path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return &Table{Index: schemaIndex(schema)}, nil
	}
	if err != nil {
		return nil, &types.StorageError{Path: path, Err: fmt.Errorf("read header: %w", err)}
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	index, err := checkSchema(header, schema)
	if err != nil {
		return nil, &types.StorageError{Path: path, Err: err}
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, &types.StorageError{Path: path, Err: fmt.Errorf("read rows: %w", err)}
	}
	return &Table{Index: index, Rows: rows}, nil
}

func checkSchema(header, schema []string) (map[string]int, error) {
	if len(header) != len(schema) {
		return nil, fmt.Errorf("header %v: %w", header, types.ErrSchemaMismatch)
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		if !slices.Contains(schema, col) {
			return nil, fmt.Errorf("unexpected column %q: %w", col, types.ErrSchemaMismatch)
		}
		if _, dup := index[col]; dup {
			return nil, fmt.Errorf("duplicate column %q: %w", col, types.ErrSchemaMismatch)
		}
		index[col] = i
	}
	return index, nil
}

func schemaIndex(schema []string) map[string]int {
	index := make(map[string]int, len(schema))
	for i, col := range schema {
		index[col] = i
	}
	return index
}

// WriteTable atomically replaces path with a CSV file holding the header
// and rows.
func WriteTable(path string, header []string, rows [][]string) error {
	return WriteFileAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("write CSV header: %w", err)
		}
		if err := cw.WriteAll(rows); err != nil {
			return fmt.Errorf("write CSV rows: %w", err)
		}
		return nil
	})
}

// WriteFileAtomic writes a file through a temporary sibling and renames it
// into place, so readers see either the old or the new content.
func WriteFileAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &types.StorageError{Path: path, Err: fmt.Errorf("create dir: %w", err)}
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &types.StorageError{Path: path, Err: err}
	}
	tmpPath := f.Name()

	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return &types.StorageError{Path: path, Err: err}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return &types.StorageError{Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return &types.StorageError{Path: path, Err: err}
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return &types.StorageError{Path: path, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &types.StorageError{Path: path, Err: fmt.Errorf("rename: %w", err)}
	}
	return nil
}

// --- Articles ---

// ReadArticles reads a file in the article schema.
func ReadArticles(path string) ([]*types.Article, error) {
	t, err := ReadTable(path, types.ArticleColumns)
	if err != nil {
		return nil, err
	}
	articles := make([]*types.Article, 0, t.Len())
	for i, row := range t.Rows {
		a, err := types.ArticleFromRecord(row, t.Index)
		if err != nil {
			return nil, &types.StorageError{Path: path, Err: fmt.Errorf("row %d: %w", i+2, err)}
		}
		articles = append(articles, a)
	}
	return articles, nil
}

// WriteArticles atomically replaces path with the articles in the canonical
// column order.
func WriteArticles(path string, articles []*types.Article) error {
	rows := make([][]string, len(articles))
	for i, a := range articles {
		rows[i] = a.Record()
	}
	return WriteTable(path, types.ArticleColumns, rows)
}

// ReadClustered reads a clustered dataset.
func ReadClustered(path string) ([]*types.ClusteredArticle, error) {
	t, err := ReadTable(path, types.ClusteredColumns)
	if err != nil {
		return nil, err
	}
	out := make([]*types.ClusteredArticle, 0, t.Len())
	for i, row := range t.Rows {
		c, err := types.ClusteredFromRecord(row, t.Index)
		if err != nil {
			return nil, &types.StorageError{Path: path, Err: fmt.Errorf("row %d: %w", i+2, err)}
		}
		out = append(out, c)
	}
	return out, nil
}

// WriteClustered atomically replaces path with a clustered dataset.
func WriteClustered(path string, articles []*types.ClusteredArticle) error {
	rows := make([][]string, len(articles))
	for i, a := range articles {
		rows[i] = a.Record()
	}
	return WriteTable(path, types.ClusteredColumns, rows)
}
