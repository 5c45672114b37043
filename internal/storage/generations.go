package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/IshaanNene/NewsLens/internal/types"
)

const (
	currentFile = "CURRENT"
	stagingPfx  = ".staging-"
)

// Generations keeps each clustering output in its own directory and flips a
// CURRENT pointer file once a generation is complete. Files inside a
// committed generation are never rewritten, so a reader that resolves
// CURRENT always sees files produced by the same run.
type Generations struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

// NewGenerations manages generations under dir.
func NewGenerations(dir string, logger *slog.Logger) *Generations {
	return &Generations{
		dir:    dir,
		now:    time.Now,
		logger: logger.With("component", "generations"),
	}
}

// Generation is an output directory being assembled.
type Generation struct {
	g       *Generations
	name    string
	staging string
	done    bool
}

// Begin starts a new generation in a staging directory.
func (g *Generations) Begin() (*Generation, error) {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return nil, &types.StorageError{Path: g.dir, Err: err}
	}
	name := g.now().UTC().Format("20060102T150405.000000000Z")
	staging, err := os.MkdirTemp(g.dir, stagingPfx+name+"-")
	if err != nil {
		return nil, &types.StorageError{Path: g.dir, Err: err}
	}
	return &Generation{g: g, name: name, staging: staging}, nil
}

// Path returns where a file of this generation should be written.
func (gen *Generation) Path(file string) string {
	return filepath.Join(gen.staging, file)
}

// Commit publishes the generation and points CURRENT at it.
func (gen *Generation) Commit() error {
	if gen.done {
		return errors.New("generation already finished")
	}
	gen.done = true

	final := filepath.Join(gen.g.dir, gen.name)
	if err := os.Rename(gen.staging, final); err != nil {
		os.RemoveAll(gen.staging)
		return &types.StorageError{Path: final, Err: fmt.Errorf("publish generation: %w", err)}
	}

	err := WriteFileAtomic(filepath.Join(gen.g.dir, currentFile), func(w io.Writer) error {
		_, err := io.WriteString(w, gen.name+"\n")
		return err
	})
	if err != nil {
		os.RemoveAll(final)
		return err
	}

	gen.g.logger.Info("generation committed", "generation", gen.name)
	return nil
}

// Abort discards the generation. The previous CURRENT stays in effect.
func (gen *Generation) Abort() {
	if gen.done {
		return
	}
	gen.done = true
	os.RemoveAll(gen.staging)
}

// Current returns the directory of the committed generation, or
// types.ErrNoData when nothing has been committed yet.
func (g *Generations) Current() (string, error) {
	data, err := os.ReadFile(filepath.Join(g.dir, currentFile))
	if errors.Is(err, os.ErrNotExist) {
		return "", types.ErrNoData
	}
	if err != nil {
		return "", &types.StorageError{Path: g.dir, Err: err}
	}
	name := strings.TrimSpace(string(data))
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", &types.StorageError{Path: g.dir, Err: fmt.Errorf("invalid CURRENT pointer %q", name)}
	}
	return filepath.Join(g.dir, name), nil
}

// Prune removes committed generations beyond the newest keep, leftover
// staging directories included. The current generation is always kept.
func (g *Generations) Prune(keep int) error {
	entries, err := os.ReadDir(g.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &types.StorageError{Path: g.dir, Err: err}
	}

	current := ""
	if dir, err := g.Current(); err == nil {
		current = filepath.Base(dir)
	}

	var gens []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), stagingPfx) {
			os.RemoveAll(filepath.Join(g.dir, e.Name()))
			continue
		}
		gens = append(gens, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(gens)))

	var errs []error
	for i, name := range gens {
		if i < keep || name == current {
			continue
		}
		if err := os.RemoveAll(filepath.Join(g.dir, name)); err != nil {
			errs = append(errs, err)
			continue
		}
		g.logger.Debug("generation pruned", "generation", name)
	}
	return errors.Join(errs...)
}
