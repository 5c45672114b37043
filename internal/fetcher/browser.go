package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/NewsLens/internal/config"
	"github.com/IshaanNene/NewsLens/internal/types"
)

// BrowserFetcher renders pages in headless Chromium via Rod. It is meant for
// listing pages that build their article lists with JavaScript.
type BrowserFetcher struct {
	browser   *rod.Browser
	cfg       *config.Config
	logger    *slog.Logger
	pagePool  chan *rod.Page
	maxPages  int
	userAgent string
}

// NewBrowserFetcher launches a browser and connects to it.
func NewBrowserFetcher(cfg *config.Config, logger *slog.Logger) (*BrowserFetcher, error) {
	bf := &BrowserFetcher{
		cfg:       cfg,
		logger:    logger.With("component", "browser_fetcher"),
		maxPages:  cfg.Collector.Concurrency,
		userAgent: config.DefaultUserAgent,
	}
	if len(cfg.Collector.UserAgents) > 0 {
		bf.userAgent = cfg.Collector.UserAgents[0]
	}

	launchURL, err := bf.launchBrowser()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	bf.browser = browser
	bf.pagePool = make(chan *rod.Page, bf.maxPages)

	bf.logger.Info("browser fetcher ready",
		"max_pages", bf.maxPages,
		"headless", cfg.Fetcher.Headless,
	)
	return bf, nil
}

func (bf *BrowserFetcher) launchBrowser() (string, error) {
	l := launcher.New().
		Headless(bf.cfg.Fetcher.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	// Chromium takes one proxy per process.
	if bf.cfg.Proxy.Enabled && len(bf.cfg.Proxy.URLs) > 0 {
		if proxyURL := NewProxyManager(&bf.cfg.Proxy, bf.logger).Next(); proxyURL != nil {
			l = l.Proxy(proxyURL.String())
		}
	}

	return l.Launch()
}

// Fetch navigates to a URL and returns the rendered page content.
func (bf *BrowserFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	start := time.Now()

	page, err := bf.getPage()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}
	defer bf.putPage(page)
	page = page.Context(ctx)

	ua := bf.userAgent
	if h := req.Headers.Get("User-Agent"); h != "" {
		ua = h
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
		bf.logger.Warn("failed to set user agent", "error", err)
	}

	timeout := bf.cfg.Collector.RequestTimeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	if err := page.Timeout(timeout).Navigate(req.URLString()); err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}
	if err := page.Timeout(timeout).WaitStable(300 * time.Millisecond); err != nil {
		bf.logger.Warn("page stability timeout, continuing", "url", req.URLString(), "error", err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}

	finalURL := req.URLString()
	if info, err := page.Info(); err == nil && info != nil {
		finalURL = info.URL
	}

	// Rod does not surface the document status code.
	duration := time.Since(start)
	resp := types.NewBrowserResponse(req, 200, []byte(html), finalURL, duration)

	bf.logger.Debug("browser fetch complete",
		"url", req.URLString(),
		"final_url", finalURL,
		"size", len(html),
		"duration", duration,
	)
	return resp, nil
}

// Close shuts down the browser and releases resources.
func (bf *BrowserFetcher) Close() error {
	close(bf.pagePool)
	for page := range bf.pagePool {
		_ = page.Close()
	}
	if bf.browser != nil {
		return bf.browser.Close()
	}
	return nil
}

// Type returns the fetcher type identifier.
func (bf *BrowserFetcher) Type() string {
	return "browser"
}

// getPage takes a page from the pool or opens a stealth-patched one.
func (bf *BrowserFetcher) getPage() (*rod.Page, error) {
	select {
	case page := <-bf.pagePool:
		return page, nil
	default:
		return stealth.Page(bf.browser)
	}
}

func (bf *BrowserFetcher) putPage(page *rod.Page) {
	_ = page.Navigate("about:blank")

	select {
	case bf.pagePool <- page:
	default:
		_ = page.Close()
	}
}
