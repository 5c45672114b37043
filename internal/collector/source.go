package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IshaanNene/NewsLens/internal/config"
	"github.com/IshaanNene/NewsLens/internal/types"
)

// Lead is an article discovered on a category listing, not yet fetched.
type Lead struct {
	URL      string
	Category string
	Title    string

	// DateHint is whatever date text the listing carried for the article.
	DateHint string

	// Published is set when the listing carries a machine-readable date.
	Published time.Time

	Listing string
}

// Source is a site-specific scraping strategy. Sources share no mutable
// state; each collection run drives one Source on its own goroutine.
type Source interface {
	// Name is the source identifier used in batch file names.
	Name() string

	// Listing returns the article leads of one category listing, following
	// pagination where the source supports it.
	Listing(ctx context.Context, listing config.ListingConfig) ([]Lead, error)

	// Article fetches the article behind lead. Its date is left as found on
	// the page; ExtractDate picks the final value.
	Article(ctx context.Context, lead Lead) (*types.Article, error)

	// ExtractDate returns the best publication date for the article, or ""
	// when none can be found.
	ExtractDate(lead Lead, a *types.Article) string
}

// NewSource builds the strategy for a configured source.
func NewSource(cfg config.SourceConfig, client *Client, maxPages int, logger *slog.Logger) (Source, error) {
	switch cfg.Kind {
	case config.SourceHTML, "":
		return NewHTMLSource(cfg, client, maxPages, logger), nil
	case config.SourceFeed:
		return NewFeedSource(cfg, client, logger), nil
	default:
		return nil, fmt.Errorf("source %q: unknown kind %q", cfg.Name, cfg.Kind)
	}
}

func newRequest(rawURL string, src config.SourceConfig, tag, category, parent string, maxRetries int) (*types.Request, error) {
	req, err := types.NewRequest(rawURL)
	if err != nil {
		return nil, err
	}
	req.Tag = tag
	req.Source = src.Name
	req.Category = category
	req.ParentURL = parent
	req.MaxRetries = maxRetries
	return req, nil
}
