package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/IshaanNene/NewsLens/internal/config"
	"github.com/IshaanNene/NewsLens/internal/fetcher"
	"github.com/IshaanNene/NewsLens/internal/observability"
	"github.com/IshaanNene/NewsLens/internal/types"
)

// Client is the fetch path shared by all sources of one collection run. It
// caps in-flight requests across sources, spaces requests to the same host
// by the politeness delay (or the robots.txt crawl-delay when longer),
// enforces robots.txt and retries retryable failures.
type Client struct {
	fetcher fetcher.Fetcher
	robots  *RobotsManager
	sem     *semaphore.Weighted
	cfg     config.CollectorConfig
	metrics *observability.Metrics
	logger  *slog.Logger

	throttle   map[string]*hostThrottle
	throttleMu sync.Mutex
}

// hostThrottle implements per-host rate limiting.
type hostThrottle struct {
	lastFetch time.Time
	mu        sync.Mutex
}

// NewClient wraps f with the collector's politeness rules.
func NewClient(f fetcher.Fetcher, cfg config.CollectorConfig, metrics *observability.Metrics, logger *slog.Logger) *Client {
	ua := config.DefaultUserAgent
	if len(cfg.UserAgents) > 0 {
		ua = cfg.UserAgents[0]
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Client{
		fetcher:  f,
		robots:   NewRobotsManager(cfg.RespectRobotsTxt, ua),
		sem:      semaphore.NewWeighted(int64(concurrency)),
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger.With("component", "collector_client"),
		throttle: make(map[string]*hostThrottle),
	}
}

// Get fetches req, retrying up to req.MaxRetries times. Non-2xx responses
// that are not retried are returned as a FetchError.
func (c *Client) Get(ctx context.Context, req *types.Request) (*types.Response, error) {
	logger := c.logger.With("url", req.URLString(), "source", req.Source)

	if !c.robots.IsAllowed(ctx, req.URLString()) {
		logger.Debug("blocked by robots.txt")
		return nil, &types.FetchError{URL: req.URLString(), Err: types.ErrBlocked}
	}

	for {
		resp, err := c.fetchOnce(ctx, req)
		if err == nil {
			return resp, nil
		}

		var fetchErr *types.FetchError
		if !errors.As(err, &fetchErr) || !fetchErr.IsRetryable() || req.RetryCount >= req.MaxRetries {
			return nil, err
		}

		req.RetryCount++
		wait := c.cfg.RetryDelay * time.Duration(req.RetryCount)
		if fetchErr.RetryAfter > wait {
			wait = fetchErr.RetryAfter
		}
		logger.Warn("retrying request",
			"retry", req.RetryCount,
			"max_retries", req.MaxRetries,
			"wait", wait,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) fetchOnce(ctx context.Context, req *types.Request) (*types.Response, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	if err := c.applyThrottle(ctx, req); err != nil {
		return nil, err
	}

	resp, err := c.fetcher.Fetch(ctx, req)
	if err != nil {
		status := 0
		var fetchErr *types.FetchError
		if errors.As(err, &fetchErr) {
			status = fetchErr.StatusCode
		}
		c.metrics.FetchRequests.WithLabelValues(req.Source, observability.StatusClass(status)).Inc()
		return nil, err
	}

	c.metrics.FetchRequests.WithLabelValues(req.Source, observability.StatusClass(resp.StatusCode)).Inc()
	if !resp.IsSuccess() {
		return nil, &types.FetchError{
			URL:        req.URLString(),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}
	return resp, nil
}

// applyThrottle enforces per-host politeness delays.
func (c *Client) applyThrottle(ctx context.Context, req *types.Request) error {
	delay := c.cfg.PolitenessDelay
	if crawl := c.robots.GetCrawlDelay(req.URL.Scheme + "://" + req.URL.Host); crawl > delay {
		delay = crawl
	}
	if delay <= 0 {
		return nil
	}

	host := req.Domain()
	c.throttleMu.Lock()
	t, ok := c.throttle[host]
	if !ok {
		t = &hostThrottle{}
		c.throttle[host] = t
	}
	c.throttleMu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	if elapsed := time.Since(t.lastFetch); elapsed < delay {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay - elapsed):
		}
	}
	t.lastFetch = time.Now()
	return nil
}
