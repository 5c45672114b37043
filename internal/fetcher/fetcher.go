package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/NewsLens/internal/config"
	"github.com/IshaanNene/NewsLens/internal/types"
)

// Fetcher is the interface for all request fetcher implementations.
type Fetcher interface {
	// Fetch retrieves the content at the given request's URL.
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}

// New creates the fetcher selected by cfg.Fetcher.Type.
func New(cfg *config.Config, logger *slog.Logger) (Fetcher, error) {
	switch cfg.Fetcher.Type {
	case "http", "":
		return NewHTTPFetcher(cfg, logger)
	case "browser":
		return NewBrowserFetcher(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown fetcher type %q: %w", cfg.Fetcher.Type, types.ErrNoFetcher)
	}
}
