package collector

import (
	"context"
	"log/slog"
	"time"

	"github.com/IshaanNene/NewsLens/internal/config"
	"github.com/IshaanNene/NewsLens/internal/parser"
	"github.com/IshaanNene/NewsLens/internal/types"
)

// HTMLSource scrapes server-rendered category listings and article pages.
type HTMLSource struct {
	cfg      config.SourceConfig
	client   *Client
	parser   *parser.HTMLParser
	maxPages int
	logger   *slog.Logger
}

// NewHTMLSource creates an HTML strategy for cfg.
func NewHTMLSource(cfg config.SourceConfig, client *Client, maxPages int, logger *slog.Logger) *HTMLSource {
	logger = logger.With("source", cfg.Name)
	return &HTMLSource{
		cfg:      cfg,
		client:   client,
		parser:   parser.NewHTMLParser(cfg.Selectors, logger),
		maxPages: max(maxPages, 1),
		logger:   logger,
	}
}

func (s *HTMLSource) Name() string { return s.cfg.Name }

// Listing walks up to maxPages pages of a category listing. A failure on a
// later page keeps the leads already found.
func (s *HTMLSource) Listing(ctx context.Context, listing config.ListingConfig) ([]Lead, error) {
	var leads []Lead
	visited := make(map[string]bool)
	next := listing.URL

	for page := 1; next != "" && page <= s.maxPages && !visited[next]; page++ {
		visited[next] = true

		req, err := newRequest(next, s.cfg, types.TagListing, listing.Category, listing.URL, s.client.cfg.MaxRetries)
		if err != nil {
			return leads, err
		}
		resp, err := s.client.Get(ctx, req)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			s.logger.Warn("listing page failed, keeping earlier pages", "url", next, "page", page, "error", err)
			break
		}

		parsed, err := s.parser.ParseListing(resp)
		if err != nil {
			return leads, err
		}
		for _, e := range parsed.Entries {
			leads = append(leads, Lead{
				URL:      e.URL,
				Category: listing.Category,
				Title:    e.Text,
				DateHint: e.DateHint,
				Listing:  next,
			})
		}

		s.logger.Debug("listing page processed",
			"category", listing.Category,
			"page", page,
			"entries", len(parsed.Entries),
		)
		next = parsed.Next
	}
	return leads, nil
}

// Article fetches and parses one article page.
func (s *HTMLSource) Article(ctx context.Context, lead Lead) (*types.Article, error) {
	req, err := newRequest(lead.URL, s.cfg, types.TagArticle, lead.Category, lead.Listing, s.client.cfg.MaxRetries)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Get(ctx, req)
	if err != nil {
		return nil, err
	}

	page, err := s.parser.ParseArticle(resp)
	if err != nil {
		return nil, err
	}

	a := types.NewArticle(resp.FinalURL)
	a.Title = page.Title
	a.Newspaper = s.cfg.Newspaper
	a.Category = lead.Category
	a.Date = page.Date
	a.Timestamp = time.Now().UTC()
	return a, nil
}

// ExtractDate prefers the listing's date hint over the article page.
func (s *HTMLSource) ExtractDate(lead Lead, a *types.Article) string {
	if d, ok := parser.FindDate(lead.DateHint); ok {
		return d
	}
	return a.Date
}
