// Package collector runs every configured news source once and writes one
// daily batch file per source.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/IshaanNene/NewsLens/internal/config"
	"github.com/IshaanNene/NewsLens/internal/fetcher"
	"github.com/IshaanNene/NewsLens/internal/observability"
	"github.com/IshaanNene/NewsLens/internal/pipeline"
	"github.com/IshaanNene/NewsLens/internal/storage"
	"github.com/IshaanNene/NewsLens/internal/types"
)

// SourceReport summarizes one source's part of a collection run.
type SourceReport struct {
	Source   string        `json:"source"`
	Path     string        `json:"path,omitempty"`
	Leads    int           `json:"leads"`
	Articles int           `json:"articles"`
	Undated  int           `json:"undated"`
	Dropped  int           `json:"dropped"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Report summarizes a collection run.
type Report struct {
	Date     string         `json:"date"`
	Sources  []SourceReport `json:"sources"`
	Articles int            `json:"articles"`
}

// FailedSources returns the names of sources whose run ended in an error.
func (r *Report) FailedSources() []string {
	var out []string
	for _, s := range r.Sources {
		if s.Err != nil {
			out = append(out, s.Source)
		}
	}
	return out
}

// Collector drives the configured sources.
type Collector struct {
	cfg     *config.Config
	client  *Client
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a Collector fetching through f.
func New(cfg *config.Config, f fetcher.Fetcher, metrics *observability.Metrics, logger *slog.Logger) *Collector {
	logger = logger.With("component", "collector")
	return &Collector{
		cfg:     cfg,
		client:  NewClient(f, cfg.Collector, metrics, logger),
		metrics: metrics,
		logger:  logger,
	}
}

// Collect runs every enabled source concurrently and writes
// <date>_<source>.csv for each into the daily directory. A failing source
// is reported and counted but never stops the others; the returned error
// is reserved for problems that prevent any collection.
func (c *Collector) Collect(ctx context.Context, date string) (*Report, error) {
	var sources []config.SourceConfig
	for _, sc := range c.cfg.Sources {
		if !sc.Disabled {
			sources = append(sources, sc)
		}
	}
	if len(sources) == 0 {
		return nil, errors.New("no enabled sources")
	}

	start := time.Now()
	c.logger.Info("collection started", "date", date, "sources", len(sources))

	report := &Report{Date: date, Sources: make([]SourceReport, len(sources))}
	var g errgroup.Group
	for i, sc := range sources {
		g.Go(func() error {
			report.Sources[i] = c.collectSource(ctx, sc, date)
			return nil
		})
	}
	_ = g.Wait()

	for _, sr := range report.Sources {
		report.Articles += sr.Articles
	}

	c.logger.Info("collection finished",
		"date", date,
		"articles", report.Articles,
		"failed_sources", report.FailedSources(),
		"duration", time.Since(start),
	)
	return report, nil
}

// CollectSource runs a single source by name.
func (c *Collector) CollectSource(ctx context.Context, name, date string) (*SourceReport, error) {
	for _, sc := range c.cfg.Sources {
		if sc.Name == name {
			sr := c.collectSource(ctx, sc, date)
			return &sr, sr.Err
		}
	}
	return nil, fmt.Errorf("unknown source %q", name)
}

func (c *Collector) collectSource(ctx context.Context, sc config.SourceConfig, date string) (rep SourceReport) {
	start := time.Now()
	rep.Source = sc.Name
	logger := c.logger.With("source", sc.Name)

	defer func() {
		if r := recover(); r != nil {
			rep.Err = fmt.Errorf("panic: %v", r)
		}
		rep.Duration = time.Since(start)
		if rep.Err != nil {
			c.metrics.SourceFailures.WithLabelValues(rep.Source).Inc()
			logger.Error("source failed", "error", rep.Err, "articles", rep.Articles)
		}
	}()

	src, err := NewSource(sc, c.client, c.cfg.Collector.MaxPages, c.logger)
	if err != nil {
		rep.Err = err
		return rep
	}

	// Leads first, so a source whose listings are all unreachable never
	// opens a batch.
	seen := pipeline.NewDeduplicator(256)
	var leads []Lead
	var listErrs []error
	for _, l := range sc.Listings {
		found, err := src.Listing(ctx, l)
		if err != nil {
			logger.Warn("listing failed", "url", l.URL, "category", l.Category, "error", err)
			listErrs = append(listErrs, err)
		}
		for _, lead := range found {
			if seen.MarkSeen(lead.URL) {
				leads = append(leads, lead)
			}
		}
	}
	rep.Leads = len(leads)
	if len(listErrs) > 0 && len(listErrs) == len(sc.Listings) {
		rep.Err = fmt.Errorf("all listings failed: %w", errors.Join(listErrs...))
		return rep
	}

	batch, err := storage.NewBatchWriter(c.cfg.Data.DailyDir(), date, src.Name(), logger)
	if err != nil {
		rep.Err = err
		return rep
	}
	rep.Path = batch.Path()
	defer batch.Abort() // no-op once committed

	var dropped, undated, failed atomic.Int64
	pipe := pipeline.NewDefault(logger)
	pipe.OnDrop(func(stage string, _ *types.Article) {
		dropped.Add(1)
		c.metrics.ArticlesDropped.WithLabelValues(src.Name(), stage).Inc()
	})

	var storeErr error
	var storeMu sync.Mutex

	var g errgroup.Group
	g.SetLimit(max(c.cfg.Collector.Concurrency, 1))
	for _, lead := range leads {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					failed.Add(1)
					logger.Error("article panicked", "url", lead.URL, "panic", r)
				}
			}()

			a, err := src.Article(ctx, lead)
			if err != nil {
				failed.Add(1)
				logger.Warn("article failed", "url", lead.URL, "error", err)
				return nil
			}
			a.Date = src.ExtractDate(lead, a)

			out, err := pipe.Process(a)
			if err != nil {
				failed.Add(1)
				logger.Warn("article rejected", "url", lead.URL, "error", err)
				return nil
			}
			if out == nil {
				return nil
			}

			if out.Date == "" {
				undated.Add(1)
				c.metrics.ArticlesUndated.WithLabelValues(src.Name()).Inc()
				logger.Warn("no publication date found", "url", out.URL)
				if c.cfg.Collector.UndatedFallback == "today" {
					out.Date = date
				}
			}

			if err := batch.Store([]*types.Article{out}); err != nil {
				storeMu.Lock()
				storeErr = errors.Join(storeErr, err)
				storeMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	rep.Dropped = int(dropped.Load())
	rep.Undated = int(undated.Load())
	rep.Failed = int(failed.Load())

	if storeErr != nil {
		_ = batch.Abort()
		rep.Err = storeErr
		return rep
	}
	if err := batch.Close(); err != nil {
		rep.Err = err
		return rep
	}

	rep.Articles = batch.Count()
	c.metrics.ArticlesCollected.WithLabelValues(src.Name()).Add(float64(rep.Articles))
	logger.Info("source collected",
		"articles", rep.Articles,
		"leads", rep.Leads,
		"undated", rep.Undated,
		"dropped", rep.Dropped,
		"failed", rep.Failed,
		"duration", time.Since(start),
	)
	return rep
}
