package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/NewsLens/internal/config"
	"github.com/IshaanNene/NewsLens/internal/types"
)

type proxyKey struct{}

// HTTPFetcher implements Fetcher using net/http.
type HTTPFetcher struct {
	client     *http.Client
	cfg        *config.FetcherConfig
	proxyCfg   *config.ProxyConfig
	proxyMgr   *ProxyManager
	logger     *slog.Logger
	userAgents []string
	uaIndex    atomic.Int64
}

// NewHTTPFetcher creates a new HTTP fetcher.
func NewHTTPFetcher(cfg *config.Config, logger *slog.Logger) (*HTTPFetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	maxIdle := cfg.Fetcher.MaxIdleConns
	if maxIdle < 2 {
		maxIdle = 2
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        maxIdle,
		MaxIdleConnsPerHost: maxIdle / 2,
		IdleConnTimeout:     cfg.Fetcher.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.Fetcher.TLSInsecure,
		},
		DisableCompression: true, // decompression, brotli included, happens in Fetch
	}

	var proxyMgr *ProxyManager
	if cfg.Proxy.Enabled && len(cfg.Proxy.URLs) > 0 {
		proxyMgr = NewProxyManager(&cfg.Proxy, logger)
		// The proxy is chosen per request in Fetch and carried on the context,
		// so a failure can be pinned on the proxy that served it.
		transport.Proxy = func(r *http.Request) (*url.URL, error) {
			u, _ := r.Context().Value(proxyKey{}).(*url.URL)
			return u, nil
		}
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !cfg.Fetcher.FollowRedirects {
			return http.ErrUseLastResponse
		}
		if len(via) >= cfg.Fetcher.MaxRedirects {
			return fmt.Errorf("max redirects (%d) reached", cfg.Fetcher.MaxRedirects)
		}
		return nil
	}

	client := &http.Client{
		Transport:     transport,
		Jar:           jar,
		Timeout:       cfg.Collector.RequestTimeout,
		CheckRedirect: redirectPolicy,
	}

	return &HTTPFetcher{
		client:     client,
		cfg:        &cfg.Fetcher,
		proxyCfg:   &cfg.Proxy,
		proxyMgr:   proxyMgr,
		logger:     logger.With("component", "http_fetcher"),
		userAgents: cfg.Collector.UserAgents,
	}, nil
}

// Fetch executes an HTTP request and returns the response.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var proxyURL *url.URL
	if f.proxyMgr != nil {
		proxyURL = f.proxyMgr.Next()
		ctx = context.WithValue(ctx, proxyKey{}, proxyURL)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URLString(), nil)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: false}
	}

	httpReq.Header.Set("User-Agent", f.nextUserAgent())
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")

	for key, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Set(key, v)
		}
	}

	start := time.Now()
	httpResp, err := f.client.Do(httpReq)
	duration := time.Since(start)

	if err != nil {
		retryable := isRetryableError(err)
		if proxyURL != nil && f.proxyCfg.RotateOnFail && retryable {
			f.proxyMgr.MarkFailed(proxyURL, err)
		}
		return nil, &types.FetchError{
			URL:       req.URLString(),
			Err:       err,
			Retryable: retryable,
		}
	}
	defer httpResp.Body.Close()

	// 429: respect Retry-After if present
	if httpResp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(httpResp.Header.Get("Retry-After"))
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, &types.FetchError{
			URL:        req.URLString(),
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("HTTP 429: rate limited (retry after %s): %s", retryAfter, strings.TrimSpace(string(body))),
			Retryable:  true,
			RetryAfter: retryAfter,
		}
	}

	if httpResp.StatusCode >= 500 {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1024))
		return nil, &types.FetchError{
			URL:        req.URLString(),
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, strings.TrimSpace(string(body))),
			Retryable:  true,
		}
	}

	var reader io.Reader = httpResp.Body
	if f.cfg.MaxBodySize > 0 {
		reader = io.LimitReader(reader, f.cfg.MaxBodySize)
	}

	reader, err = decompressReader(httpResp, reader)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: false}
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}

	if proxyURL != nil {
		f.proxyMgr.MarkHealthy(proxyURL)
	}

	resp := types.NewResponse(req, httpResp, body, duration)

	f.logger.Debug("fetch complete",
		"url", req.URLString(),
		"status", resp.StatusCode,
		"size", len(body),
		"duration", duration,
	)

	return resp, nil
}

// Close releases resources.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// Type returns the fetcher type identifier.
func (f *HTTPFetcher) Type() string {
	return "http"
}

// nextUserAgent returns the next User-Agent in rotation.
func (f *HTTPFetcher) nextUserAgent() string {
	if len(f.userAgents) == 0 {
		return config.DefaultUserAgent
	}
	idx := f.uaIndex.Add(1) % int64(len(f.userAgents))
	return f.userAgents[idx]
}

// decompressReader wraps a reader with the decompressor for the response's
// Content-Encoding: gzip, deflate or brotli (br).
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

// isRetryableError checks if a network error warrants a retry.
// Covers timeouts, connection resets, unexpected EOF, and connection refused.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	// Context cancellation is not retryable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return true
		}
	}
	return false
}

// parseRetryAfter parses the Retry-After header value.
// Supports both integer seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 5 * time.Second // default back-off
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil {
		if secs > 120 {
			secs = 120 // cap at 2 minutes
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		d := time.Until(t)
		if d < 0 {
			return time.Second
		}
		if d > 2*time.Minute {
			return 2 * time.Minute
		}
		return d
	}
	return 5 * time.Second
}
