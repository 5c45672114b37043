package storage

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/NewsLens/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func sampleArticle(title, category string) *types.Article {
	return &types.Article{
		Title:     title,
		URL:       "https://example.com/" + title,
		Newspaper: "The Chronicle",
		Category:  category,
		Date:      "2024-01-01",
		Timestamp: time.Date(2024, 1, 1, 8, 30, 0, 0, time.UTC),
	}
}

func TestReadTableAnyColumnOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.csv")
	content := "url,title,timestamp,date,category,newspaper\n" +
		"https://x/1,Hello,2024-01-01T08:30:00Z,2024-01-01,Business,The Herald\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	articles, err := ReadArticles(path)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "Hello", articles[0].Title)
	assert.Equal(t, "https://x/1", articles[0].URL)
	assert.Equal(t, "Business", articles[0].Category)
	assert.Equal(t, "The Herald", articles[0].Newspaper)
}

func TestReadTableSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("title,url,author\nx,y,z\n"), 0o644))

	_, err := ReadArticles(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrSchemaMismatch))

	var se *types.StorageError
	assert.True(t, errors.As(err, &se))
}

func TestReadTableEmptyFile(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	articles, err := ReadArticles(empty)
	require.NoError(t, err)
	assert.Empty(t, articles)

	headerOnly := filepath.Join(dir, "header.csv")
	require.NoError(t, os.WriteFile(headerOnly, []byte("title,url,newspaper,category,date,timestamp\n"), 0o644))
	articles, err = ReadArticles(headerOnly)
	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestReadTableCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.csv")
	content := "title,url,newspaper,category,date,timestamp\n\"unterminated,x,y,z,w,v\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := ReadArticles(path)
	require.Error(t, err)
	assert.False(t, errors.Is(err, types.ErrSchemaMismatch))
}

func TestWriteArticlesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "combined_latest.csv")
	in := []*types.Article{sampleArticle("a", "Business"), sampleArticle("b, with comma", "Sports")}

	require.NoError(t, WriteArticles(path, in))
	out, err := ReadArticles(path)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, in[1].Title, out[1].Title)
	assert.True(t, in[0].Timestamp.Equal(out[0].Timestamp))
}

func TestWriteFileAtomicFailureKeepsOld(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	err := WriteFileAtomic(path, func(w io.Writer) error {
		io.WriteString(w, "partial")
		return errors.New("boom")
	})
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must be cleaned up")
}

func TestBatchWriterCommitsOnClose(t *testing.T) {
	dir := t.TempDir()
	w, err := NewBatchWriter(dir, "2024-01-01", "chronicle", testLogger)
	require.NoError(t, err)

	require.NoError(t, w.Store([]*types.Article{sampleArticle("a", "Business")}))
	require.NoError(t, w.Store([]*types.Article{sampleArticle("b", "Sports")}))

	_, err = os.Stat(w.Path())
	assert.True(t, os.IsNotExist(err), "batch must not be visible before Close")

	require.NoError(t, w.Close())
	assert.Equal(t, 2, w.Count())

	articles, err := ReadArticles(filepath.Join(dir, "2024-01-01_chronicle.csv"))
	require.NoError(t, err)
	assert.Len(t, articles, 2)

	_, err = os.Stat(w.Path() + partialSuffix)
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, w.Store([]*types.Article{sampleArticle("c", "Sports")}))
}

func TestBatchWriterEmptyRunKeepsEarlierBatch(t *testing.T) {
	dir := t.TempDir()

	first, err := NewBatchWriter(dir, "2024-01-01", "herald", testLogger)
	require.NoError(t, err)
	require.NoError(t, first.Store([]*types.Article{sampleArticle("a", "Politics")}))
	require.NoError(t, first.Close())

	second, err := NewBatchWriter(dir, "2024-01-01", "herald", testLogger)
	require.NoError(t, err)
	require.NoError(t, second.Close())

	articles, err := ReadArticles(first.Path())
	require.NoError(t, err)
	assert.Len(t, articles, 1)
}

func TestBatchWriterEmptyFirstRunWritesHeader(t *testing.T) {
	dir := t.TempDir()
	w, err := NewBatchWriter(dir, "2024-01-01", "sundaymail", testLogger)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	articles, err := ReadArticles(w.Path())
	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestBatchWriterAbort(t *testing.T) {
	dir := t.TempDir()
	w, err := NewBatchWriter(dir, "2024-01-01", "chronicle", testLogger)
	require.NoError(t, err)
	require.NoError(t, w.Store([]*types.Article{sampleArticle("a", "Business")}))
	require.NoError(t, w.Abort())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerationsCommitAndCurrent(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerations(dir, testLogger)

	_, err := g.Current()
	assert.ErrorIs(t, err, types.ErrNoData)

	gen, err := g.Begin()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(gen.Path("a.txt"), []byte("one"), 0o644))
	require.NoError(t, gen.Commit())

	cur, err := g.Current()
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(cur, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestGenerationsAbortKeepsCurrent(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerations(dir, testLogger)

	gen, err := g.Begin()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(gen.Path("a.txt"), []byte("one"), 0o644))
	require.NoError(t, gen.Commit())
	before, err := g.Current()
	require.NoError(t, err)

	next, err := g.Begin()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(next.Path("a.txt"), []byte("two"), 0o644))
	next.Abort()

	after, err := g.Current()
	require.NoError(t, err)
	assert.Equal(t, before, after)

	data, err := os.ReadFile(filepath.Join(after, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestGenerationsPrune(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerations(dir, testLogger)

	base := time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		g.now = func() time.Time { return at }
		gen, err := g.Begin()
		require.NoError(t, err)
		require.NoError(t, gen.Commit())
	}
	// A staging directory left behind by a crashed run.
	require.NoError(t, os.Mkdir(filepath.Join(dir, stagingPfx+"crashed"), 0o755))

	require.NoError(t, g.Prune(2))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	assert.Len(t, dirs, 2)

	cur, err := g.Current()
	require.NoError(t, err)
	assert.Contains(t, dirs, filepath.Base(cur))
}
