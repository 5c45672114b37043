// Package pipeline cleans and filters collected articles before they are
// written to a daily batch file.
package pipeline

import (
	"log/slog"
	"strings"

	"github.com/IshaanNene/NewsLens/internal/types"
)

// Middleware processes an article and returns the (possibly modified)
// article. Return nil to drop the article from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms an article. Return nil to drop it.
	Process(a *types.Article) (*types.Article, error)
}

// DropFunc is called with the stage name whenever a middleware drops an
// article.
type DropFunc func(stage string, a *types.Article)

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	onDrop      DropFunc
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// NewDefault builds the standard article chain: trim, HTML sanitize,
// required title and url, per-run URL dedup and date normalization.
func NewDefault(logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(&TrimMiddleware{})
	p.Use(NewHTMLSanitizeMiddleware())
	p.Use(&RequiredFieldsMiddleware{Fields: []string{types.ColTitle, types.ColURL}})
	p.Use(NewDedupMiddleware())
	p.Use(NewDateNormalizeMiddleware())
	return p
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// OnDrop registers a callback for dropped articles.
func (p *Pipeline) OnDrop(fn DropFunc) {
	p.onDrop = fn
}

// Process runs the article through all middleware in order.
func (p *Pipeline) Process(a *types.Article) (*types.Article, error) {
	current := a

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage:   mw.Name(),
				Article: current,
				Err:     err,
			}
		}
		if result == nil {
			p.logger.Debug("article dropped", "stage", mw.Name(), "url", a.URL)
			if p.onDrop != nil {
				p.onDrop(mw.Name(), a)
			}
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}

// --- Built-in Middleware ---

// TrimMiddleware trims whitespace from all text columns.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(a *types.Article) (*types.Article, error) {
	for _, col := range textColumns {
		a.Set(col, strings.TrimSpace(a.Get(col)))
	}
	return a, nil
}

// RequiredFieldsMiddleware drops articles with a blank required column.
type RequiredFieldsMiddleware struct {
	Fields []string
}

func (m *RequiredFieldsMiddleware) Name() string { return "required_fields" }

func (m *RequiredFieldsMiddleware) Process(a *types.Article) (*types.Article, error) {
	for _, field := range m.Fields {
		if strings.TrimSpace(a.Get(field)) == "" {
			return nil, nil
		}
	}
	return a, nil
}

// DedupMiddleware drops articles whose canonical URL was already seen.
type DedupMiddleware struct {
	seen *Deduplicator
}

func NewDedupMiddleware() *DedupMiddleware {
	return &DedupMiddleware{seen: NewDeduplicator(256)}
}

func (m *DedupMiddleware) Name() string { return "dedup" }

func (m *DedupMiddleware) Process(a *types.Article) (*types.Article, error) {
	if !m.seen.MarkSeen(a.URL) {
		return nil, nil
	}
	return a, nil
}

var textColumns = []string{
	types.ColTitle,
	types.ColURL,
	types.ColNewspaper,
	types.ColCategory,
	types.ColDate,
}
