package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"

	"github.com/robfig/cron/v3"
)

// MaxConcurrency caps in-flight requests across all sources.
const MaxConcurrency = 16

var clockTime = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)

// CronSpec returns the daily trigger as a standard 5-field cron expression.
// A wall-clock time such as "02:00" becomes "0 2 * * *".
func (s ScheduleConfig) CronSpec() string {
	if m := clockTime.FindStringSubmatch(s.Daily); m != nil {
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		return fmt.Sprintf("%d %d * * *", min, h)
	}
	return s.Daily
}

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Data.Dir == "" {
		return fmt.Errorf("data.dir must not be empty")
	}

	if cfg.Collector.Concurrency < 1 || cfg.Collector.Concurrency > MaxConcurrency {
		return fmt.Errorf("collector.concurrency must be 1-%d, got %d", MaxConcurrency, cfg.Collector.Concurrency)
	}
	if cfg.Collector.RequestTimeout <= 0 {
		return fmt.Errorf("collector.request_timeout must be > 0")
	}
	if cfg.Collector.PolitenessDelay < 0 {
		return fmt.Errorf("collector.politeness_delay must be >= 0")
	}
	if cfg.Collector.MaxRetries < 0 {
		return fmt.Errorf("collector.max_retries must be >= 0, got %d", cfg.Collector.MaxRetries)
	}
	if cfg.Collector.MaxPages < 1 {
		return fmt.Errorf("collector.max_pages must be >= 1, got %d", cfg.Collector.MaxPages)
	}
	if f := cfg.Collector.UndatedFallback; f != "" && f != "today" {
		return fmt.Errorf("collector.undated_fallback must be empty or 'today', got %q", f)
	}

	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}
	if cfg.Fetcher.Type != "http" && cfg.Fetcher.Type != "browser" {
		return fmt.Errorf("fetcher.type must be 'http' or 'browser', got %q", cfg.Fetcher.Type)
	}

	if cfg.Proxy.Enabled {
		if cfg.Proxy.Rotation != "round_robin" && cfg.Proxy.Rotation != "random" {
			return fmt.Errorf("proxy.rotation must be 'round_robin' or 'random', got %q", cfg.Proxy.Rotation)
		}
		for _, proxyURL := range cfg.Proxy.URLs {
			if _, err := url.Parse(proxyURL); err != nil {
				return fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
			}
		}
	}

	seen := make(map[string]bool, len(cfg.Sources))
	for i, src := range cfg.Sources {
		if src.Name == "" {
			return fmt.Errorf("sources[%d].name must not be empty", i)
		}
		if seen[src.Name] {
			return fmt.Errorf("duplicate source name %q", src.Name)
		}
		seen[src.Name] = true
		if src.Kind != SourceHTML && src.Kind != SourceFeed {
			return fmt.Errorf("source %q: kind must be 'html' or 'feed', got %q", src.Name, src.Kind)
		}
		if len(src.Listings) == 0 {
			return fmt.Errorf("source %q: at least one listing is required", src.Name)
		}
		for _, l := range src.Listings {
			if err := ValidateURL(l.URL); err != nil {
				return fmt.Errorf("source %q: listing %q: %w", src.Name, l.URL, err)
			}
		}
	}

	c := cfg.Clustering
	if c.K < 1 {
		return fmt.Errorf("clustering.k must be >= 1, got %d", c.K)
	}
	if c.MaxFeatures < 1 {
		return fmt.Errorf("clustering.max_features must be >= 1, got %d", c.MaxFeatures)
	}
	if c.TopTerms < 1 {
		return fmt.Errorf("clustering.top_terms must be >= 1, got %d", c.TopTerms)
	}
	if c.MaxIter < 1 {
		return fmt.Errorf("clustering.max_iter must be >= 1, got %d", c.MaxIter)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("clustering.tolerance must be >= 0")
	}
	if c.NInit < 1 {
		return fmt.Errorf("clustering.n_init must be >= 1, got %d", c.NInit)
	}
	if c.TextField != "category" && c.TextField != "title" && c.TextField != "title+category" {
		return fmt.Errorf("clustering.text_field must be category, title or title+category, got %q", c.TextField)
	}
	if c.KeepGenerations < 1 {
		return fmt.Errorf("clustering.keep_generations must be >= 1, got %d", c.KeepGenerations)
	}

	if _, err := cron.ParseStandard(cfg.Schedule.CronSpec()); err != nil {
		return fmt.Errorf("schedule.daily %q is neither HH:MM nor a cron expression: %w", cfg.Schedule.Daily, err)
	}
	if cfg.Schedule.PollInterval <= 0 {
		return fmt.Errorf("schedule.poll_interval must be > 0")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}

// ValidateURL checks if a URL string is valid for crawling.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
