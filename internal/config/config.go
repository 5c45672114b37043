package config

import (
	"path/filepath"
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// DefaultUserAgent identifies the collector to the sites it visits.
const DefaultUserAgent = "NewsResearchProject (+https://github.com/IshaanNene/NewsLens)"

// Config is the root configuration for NewsLens. It is built once at
// start-up and treated as read-only afterwards.
type Config struct {
	Data       DataConfig       `mapstructure:"data"       yaml:"data"`
	Collector  CollectorConfig  `mapstructure:"collector"  yaml:"collector"`
	Fetcher    FetcherConfig    `mapstructure:"fetcher"    yaml:"fetcher"`
	Proxy      ProxyConfig      `mapstructure:"proxy"      yaml:"proxy"`
	Sources    []SourceConfig   `mapstructure:"sources"    yaml:"sources"`
	Clustering ClusteringConfig `mapstructure:"clustering" yaml:"clustering"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"   yaml:"schedule"`
	API        APIConfig        `mapstructure:"api"        yaml:"api"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"    yaml:"metrics"`
}

// DataConfig is the on-disk directory layout.
type DataConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// DailyDir holds the per-source batch files.
func (d DataConfig) DailyDir() string { return filepath.Join(d.Dir, "daily") }

// ClusteredDir holds the clustering output generations.
func (d DataConfig) ClusteredDir() string { return filepath.Join(d.Dir, "clustered") }

// LatestPath is the unified dataset, rewritten every cycle.
func (d DataConfig) LatestPath() string { return filepath.Join(d.Dir, "combined_latest.csv") }

// ArchivePath is the dated unified dataset for date (YYYY-MM-DD).
func (d DataConfig) ArchivePath(date string) string {
	return filepath.Join(d.Dir, "combined_"+date+".csv")
}

// CollectorConfig controls how sources are crawled.
type CollectorConfig struct {
	Concurrency      int           `mapstructure:"concurrency"        yaml:"concurrency"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"    yaml:"request_timeout"`
	PolitenessDelay  time.Duration `mapstructure:"politeness_delay"   yaml:"politeness_delay"`
	RespectRobotsTxt bool          `mapstructure:"respect_robots_txt" yaml:"respect_robots_txt"`
	MaxRetries       int           `mapstructure:"max_retries"        yaml:"max_retries"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"        yaml:"retry_delay"`
	MaxPages         int           `mapstructure:"max_pages"          yaml:"max_pages"`
	UserAgents       []string      `mapstructure:"user_agents"        yaml:"user_agents"`

	// UndatedFallback decides what an article with no discoverable date gets:
	// "" leaves the date empty, "today" stamps the collection date.
	UndatedFallback string `mapstructure:"undated_fallback" yaml:"undated_fallback"`
}

// FetcherConfig controls the request fetcher.
type FetcherConfig struct {
	Type            string        `mapstructure:"type"              yaml:"type"` // http, browser
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	Headless        bool          `mapstructure:"headless"          yaml:"headless"`
}

// ProxyConfig controls proxy rotation.
type ProxyConfig struct {
	Enabled      bool     `mapstructure:"enabled"        yaml:"enabled"`
	Rotation     string   `mapstructure:"rotation"       yaml:"rotation"`
	URLs         []string `mapstructure:"urls"           yaml:"urls"`
	RotateOnFail bool     `mapstructure:"rotate_on_fail" yaml:"rotate_on_fail"`
}

// Source kinds.
const (
	SourceHTML = "html"
	SourceFeed = "feed"
)

// SourceConfig describes one newspaper.
type SourceConfig struct {
	Name      string          `mapstructure:"name"      yaml:"name"`
	Newspaper string          `mapstructure:"newspaper" yaml:"newspaper"`
	Kind      string          `mapstructure:"kind"      yaml:"kind"`
	Disabled  bool            `mapstructure:"disabled"  yaml:"disabled"`
	Listings  []ListingConfig `mapstructure:"listings"  yaml:"listings"`
	Selectors SelectorConfig  `mapstructure:"selectors" yaml:"selectors"`
}

// ListingConfig maps a category listing (or feed) URL to a category label.
type ListingConfig struct {
	URL      string `mapstructure:"url"      yaml:"url"`
	Category string `mapstructure:"category" yaml:"category"`
}

// SelectorConfig holds the extraction rules for HTML sources.
type SelectorConfig struct {
	// Entry selects one listing entry; Link is the anchor inside it.
	Entry    string   `mapstructure:"entry"     yaml:"entry"`
	Link     string   `mapstructure:"link"      yaml:"link"`
	// DateHint is an XPath, relative to the entry, pointing at the node that
	// usually carries the publication date.
	DateHint string   `mapstructure:"date_hint" yaml:"date_hint"`
	Next     string   `mapstructure:"next"      yaml:"next"`
	Title    []string `mapstructure:"title"     yaml:"title"`
	Date     []string `mapstructure:"date"      yaml:"date"`
}

// ClusteringConfig controls the clustering stage.
type ClusteringConfig struct {
	K               int     `mapstructure:"k"                yaml:"k"`
	Seed            int64   `mapstructure:"seed"             yaml:"seed"`
	MaxFeatures     int     `mapstructure:"max_features"     yaml:"max_features"`
	TopTerms        int     `mapstructure:"top_terms"        yaml:"top_terms"`
	MaxIter         int     `mapstructure:"max_iter"         yaml:"max_iter"`
	Tolerance       float64 `mapstructure:"tolerance"        yaml:"tolerance"`
	NInit           int     `mapstructure:"n_init"           yaml:"n_init"`
	TextField       string  `mapstructure:"text_field"       yaml:"text_field"`
	KeepGenerations int     `mapstructure:"keep_generations" yaml:"keep_generations"`
}

// ScheduleConfig controls the daily scheduler.
type ScheduleConfig struct {
	// Daily is either a wall-clock time ("02:00") or a 5-field cron expression.
	Daily        string        `mapstructure:"daily"          yaml:"daily"`
	PollInterval time.Duration `mapstructure:"poll_interval"  yaml:"poll_interval"`
	RunAtStartup bool          `mapstructure:"run_at_startup" yaml:"run_at_startup"`
}

// APIConfig controls the presenter HTTP server.
type APIConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultSelectors are the extraction rules for the heraldonline.co.zw
// category listings.
func DefaultSelectors() SelectorConfig {
	return SelectorConfig{
		Entry:    "h6",
		Link:     "a",
		DateHint: "./following-sibling::p[1]",
		Next:     ".pagination a.next, .nav-links a.next",
		Title: []string{
			"h1",
			"h1.article-title",
			"h1.entry-title",
			".headline h1",
			".article-header h1",
			".post-title",
			"header h1",
		},
		Date: []string{
			".post-date",
			".entry-date",
			".date",
			".meta-date",
			".article-date",
			".post-meta",
		},
	}
}

// heraldListings builds the four category listings of a heraldonline.co.zw
// publication.
func heraldListings(publication string) []ListingConfig {
	base := "https://www.heraldonline.co.zw/single-category/?tag="
	return []ListingConfig{
		{URL: base + "business&category=" + publication, Category: "Business"},
		{URL: base + "international&category=" + publication, Category: "Politics"},
		{URL: base + "entertainment&category=" + publication, Category: "Arts/Culture/Celebrities"},
		{URL: base + "sport&category=" + publication, Category: "Sports"},
	}
}

// DefaultSources returns the built-in newspaper sources.
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{Name: "chronicle", Newspaper: "The Chronicle", Kind: SourceHTML, Listings: heraldListings("chronicle"), Selectors: DefaultSelectors()},
		{Name: "herald", Newspaper: "The Herald", Kind: SourceHTML, Listings: heraldListings("herald"), Selectors: DefaultSelectors()},
		{Name: "sundaymail", Newspaper: "The Sunday Mail", Kind: SourceHTML, Listings: heraldListings("sundaymail"), Selectors: DefaultSelectors()},
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Dir: "data",
		},
		Collector: CollectorConfig{
			Concurrency:      16,
			RequestTimeout:   30 * time.Second,
			PolitenessDelay:  1500 * time.Millisecond,
			RespectRobotsTxt: true,
			MaxRetries:       3,
			RetryDelay:       2 * time.Second,
			MaxPages:         5,
			UserAgents:       []string{DefaultUserAgent},
		},
		Fetcher: FetcherConfig{
			Type:            "http",
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    32,
			Headless:        true,
		},
		Proxy: ProxyConfig{
			Enabled:      false,
			Rotation:     "round_robin",
			RotateOnFail: true,
		},
		Sources: DefaultSources(),
		Clustering: ClusteringConfig{
			K:               4,
			Seed:            42,
			MaxFeatures:     5000,
			TopTerms:        10,
			MaxIter:         300,
			Tolerance:       1e-4,
			NInit:           1,
			TextField:       "category",
			KeepGenerations: 3,
		},
		Schedule: ScheduleConfig{
			Daily:        "02:00",
			PollInterval: 60 * time.Second,
			RunAtStartup: true,
		},
		API: APIConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
