package collector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/NewsLens/internal/config"
	"github.com/IshaanNene/NewsLens/internal/fetcher"
	"github.com/IshaanNene/NewsLens/internal/observability"
	"github.com/IshaanNene/NewsLens/internal/storage"
	"github.com/IshaanNene/NewsLens/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const testDate = "2024-05-10"

// newsSite serves a small news site: a paginated business listing, a
// failing sport listing, article pages, an RSS feed and a robots.txt.
func newsSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
	})
	mux.HandleFunc("/cat/business", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `<html><body>
<h6><a href="/a/1">Mines output rises</a></h6><p>May 10, 2025</p>
<h6><a href="/a/4">Fuel prices</a></h6>
</body></html>`)
			return
		}
		fmt.Fprint(w, `<html><body>
<h6><a href="/a/1">Mines output rises</a></h6><p style="color:black">May 10, 2025</p>
<h6><a href="/private/3">Members only</a></h6><p>May 8, 2025</p>
<h6><a href="/a/2">Budget review</a></h6>
<div class="pagination"><a class="next" href="/cat/business?page=2">Next</a></div>
</body></html>`)
	})
	mux.HandleFunc("/cat/sport", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})
	mux.HandleFunc("/a/1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>Mines output rises</h1><p>April 1, 2020</p></body></html>`)
	})
	mux.HandleFunc("/a/2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><header><h1>Budget <em>review</em></h1></header><p>Published March 3, 2024</p></body></html>`)
	})
	mux.HandleFunc("/a/4", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1 class="entry-title">Fuel prices</h1><p>No date here.</p></body></html>`)
	})
	mux.HandleFunc("/private/3", func(w http.ResponseWriter, r *http.Request) {
		t.Error("robots.txt disallowed path was fetched")
	})
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Wire</title>
<item><title>Rains expected</title><link>https://wire.example/rains</link><pubDate>Mon, 06 May 2024 10:00:00 +0000</pubDate></item>
<item><title>Undated wire</title><guid>https://wire.example/undated</guid></item>
<item><title>No link</title></item>
</channel></rss>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, base string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Data.Dir = t.TempDir()
	cfg.Collector.PolitenessDelay = 0
	cfg.Collector.RetryDelay = time.Millisecond
	cfg.Collector.MaxRetries = 1
	cfg.Sources = []config.SourceConfig{
		{
			Name:      "herald",
			Newspaper: "The Herald",
			Kind:      config.SourceHTML,
			Listings: []config.ListingConfig{
				{URL: base + "/cat/business", Category: "Business"},
				{URL: base + "/cat/sport", Category: "Sports"},
			},
			Selectors: config.DefaultSelectors(),
		},
		{
			Name:      "wire",
			Newspaper: "The Wire",
			Kind:      config.SourceFeed,
			Listings:  []config.ListingConfig{{URL: base + "/feed.xml", Category: "Politics"}},
		},
		{
			Name:      "broken",
			Newspaper: "Broken Times",
			Kind:      config.SourceHTML,
			Listings:  []config.ListingConfig{{URL: base + "/missing", Category: "Business"}},
			Selectors: config.DefaultSelectors(),
		},
	}
	return cfg
}

func newCollector(t *testing.T, cfg *config.Config) (*Collector, *observability.Metrics) {
	t.Helper()
	f, err := fetcher.NewHTTPFetcher(cfg, testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	m := observability.NewMetrics(nil)
	return New(cfg, f, m, testLogger), m
}

func byURL(articles []*types.Article) map[string]*types.Article {
	out := make(map[string]*types.Article, len(articles))
	for _, a := range articles {
		out[a.URL] = a
	}
	return out
}

func TestCollect(t *testing.T) {
	srv := newsSite(t)
	cfg := testConfig(t, srv.URL)
	c, m := newCollector(t, cfg)

	report, err := c.Collect(context.Background(), testDate)
	require.NoError(t, err)
	require.Len(t, report.Sources, 3)
	assert.Equal(t, []string{"broken"}, report.FailedSources())
	assert.Equal(t, 5, report.Articles)

	// --- HTML source ---
	herald := report.Sources[0]
	require.NoError(t, herald.Err)
	assert.Equal(t, 4, herald.Leads)
	assert.Equal(t, 3, herald.Articles)
	assert.Equal(t, 1, herald.Failed)
	assert.Equal(t, 1, herald.Undated)

	rows, err := storage.ReadArticles(filepath.Join(cfg.Data.DailyDir(), testDate+"_herald.csv"))
	require.NoError(t, err)
	got := byURL(rows)
	require.Len(t, got, 3)

	a1 := got[srv.URL+"/a/1"]
	require.NotNil(t, a1)
	assert.Equal(t, "Mines output rises", a1.Title)
	assert.Equal(t, "The Herald", a1.Newspaper)
	assert.Equal(t, "Business", a1.Category)
	assert.Equal(t, "2025-05-10", a1.Date, "listing date hint wins over the page")

	a2 := got[srv.URL+"/a/2"]
	require.NotNil(t, a2)
	assert.Equal(t, "Budget review", a2.Title)
	assert.Equal(t, "2024-03-03", a2.Date)

	a4 := got[srv.URL+"/a/4"]
	require.NotNil(t, a4)
	assert.Empty(t, a4.Date)
	assert.False(t, a4.Timestamp.IsZero())

	// --- Feed source ---
	wire, err := storage.ReadArticles(filepath.Join(cfg.Data.DailyDir(), testDate+"_wire.csv"))
	require.NoError(t, err)
	sort.Slice(wire, func(i, j int) bool { return wire[i].URL < wire[j].URL })
	require.Len(t, wire, 2)
	assert.Equal(t, "https://wire.example/rains", wire[0].URL)
	assert.Equal(t, "2024-05-06", wire[0].Date)
	assert.Equal(t, "Politics", wire[0].Category)
	assert.Equal(t, "https://wire.example/undated", wire[1].URL)
	assert.Empty(t, wire[1].Date)

	// --- Failed source ---
	assert.Error(t, report.Sources[2].Err)
	_, err = os.Stat(filepath.Join(cfg.Data.DailyDir(), testDate+"_broken.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceFailures.WithLabelValues("broken")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ArticlesCollected.WithLabelValues("herald")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ArticlesUndated.WithLabelValues("wire")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FetchRequests.WithLabelValues("herald", "5xx")))

	// No partial files are left behind.
	partials, err := filepath.Glob(filepath.Join(cfg.Data.DailyDir(), "*.partial"))
	require.NoError(t, err)
	assert.Empty(t, partials)
}

func TestCollectUndatedFallbackToday(t *testing.T) {
	srv := newsSite(t)
	cfg := testConfig(t, srv.URL)
	cfg.Collector.UndatedFallback = "today"
	cfg.Sources = cfg.Sources[1:2]
	c, _ := newCollector(t, cfg)

	sr, err := c.CollectSource(context.Background(), "wire", testDate)
	require.NoError(t, err)
	assert.Equal(t, 1, sr.Undated)

	rows, err := storage.ReadArticles(sr.Path)
	require.NoError(t, err)
	for _, a := range rows {
		assert.NotEmpty(t, a.Date)
	}
	assert.Equal(t, testDate, byURL(rows)["https://wire.example/undated"].Date)
}

func TestCollectSourceUnknown(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	c, _ := newCollector(t, cfg)
	_, err := c.CollectSource(context.Background(), "nope", testDate)
	assert.Error(t, err)
}

func TestCollectNoSources(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	for i := range cfg.Sources {
		cfg.Sources[i].Disabled = true
	}
	c, _ := newCollector(t, cfg)
	_, err := c.Collect(context.Background(), testDate)
	assert.Error(t, err)
}

// --- Client ---

func TestClientThrottlesPerHost(t *testing.T) {
	var hits []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		hits = append(hits, time.Now())
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Collector.PolitenessDelay = 50 * time.Millisecond
	f, err := fetcher.NewHTTPFetcher(cfg, testLogger)
	require.NoError(t, err)
	c := NewClient(f, cfg.Collector, observability.NewMetrics(nil), testLogger)

	for range 3 {
		req, err := types.NewRequest(srv.URL + "/page")
		require.NoError(t, err)
		_, err = c.Get(context.Background(), req)
		require.NoError(t, err)
	}
	require.Len(t, hits, 3)
	assert.GreaterOrEqual(t, hits[2].Sub(hits[0]), 90*time.Millisecond)
}

func TestClientRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Collector.PolitenessDelay = 0
	cfg.Collector.RetryDelay = time.Millisecond
	f, err := fetcher.NewHTTPFetcher(cfg, testLogger)
	require.NoError(t, err)
	c := NewClient(f, cfg.Collector, observability.NewMetrics(nil), testLogger)

	req, err := types.NewRequest(srv.URL + "/flaky")
	require.NoError(t, err)
	req.MaxRetries = 3
	resp, err := c.Get(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, 2, req.RetryCount)
}

// --- robots.txt ---

func TestParseRobotsTxt(t *testing.T) {
	content := `
User-agent: otherbot
Disallow: /

User-agent: NewsResearchProject
Disallow: /admin
Allow: /admin/public
Crawl-delay: 2.5
`
	data := parseRobotsTxt(content, productToken(config.DefaultUserAgent))
	assert.Equal(t, []string{"/admin"}, data.disallowed)
	assert.Equal(t, []string{"/admin/public"}, data.allowed)
	assert.Equal(t, 2500*time.Millisecond, data.crawlDelay)
}

func TestMatchRobotsPattern(t *testing.T) {
	assert.True(t, matchRobotsPattern("/private", "/private/3"))
	assert.True(t, matchRobotsPattern("/*.pdf$", "/files/report.pdf"))
	assert.False(t, matchRobotsPattern("/*.pdf$", "/files/report.pdf?x=1"))
	assert.False(t, matchRobotsPattern("", "/anything"))
}

func TestProductToken(t *testing.T) {
	assert.Equal(t, "newsresearchproject", productToken("NewsResearchProject (+https://github.com/IshaanNene/NewsLens)"))
	assert.Equal(t, "mozilla", productToken("Mozilla/5.0 (X11)"))
}
