package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. NEWSLENS_CLUSTERING_K.
const EnvPrefix = "NEWSLENS"

// Load reads configuration from file, environment, and CLI flags.
// Priority (highest to lowest): CLI flags > env vars > config file > defaults.
// A .env file in the working directory is loaded into the environment first.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("newslens")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".newslens"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// A configured source list replaces the built-in one instead of being
	// merged into it element by element.
	if v.IsSet("sources") {
		cfg.Sources = nil
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for i := range cfg.Sources {
		applySourceDefaults(&cfg.Sources[i])
	}

	return cfg, nil
}

// applySourceDefaults fills the parts of a source left out of the file.
func applySourceDefaults(src *SourceConfig) {
	if src.Kind == "" {
		src.Kind = SourceHTML
	}
	if src.Newspaper == "" {
		src.Newspaper = src.Name
	}
	def := DefaultSelectors()
	sel := &src.Selectors
	if sel.Entry == "" {
		sel.Entry = def.Entry
	}
	if sel.Link == "" {
		sel.Link = def.Link
	}
	if sel.DateHint == "" {
		sel.DateHint = def.DateHint
	}
	if sel.Next == "" {
		sel.Next = def.Next
	}
	if len(sel.Title) == 0 {
		sel.Title = def.Title
	}
	if len(sel.Date) == 0 {
		sel.Date = def.Date
	}
}

// setDefaults registers default values in viper so every key can be
// overridden from the environment.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("data.dir", cfg.Data.Dir)

	v.SetDefault("collector.concurrency", cfg.Collector.Concurrency)
	v.SetDefault("collector.request_timeout", cfg.Collector.RequestTimeout)
	v.SetDefault("collector.politeness_delay", cfg.Collector.PolitenessDelay)
	v.SetDefault("collector.respect_robots_txt", cfg.Collector.RespectRobotsTxt)
	v.SetDefault("collector.max_retries", cfg.Collector.MaxRetries)
	v.SetDefault("collector.retry_delay", cfg.Collector.RetryDelay)
	v.SetDefault("collector.max_pages", cfg.Collector.MaxPages)
	v.SetDefault("collector.user_agents", cfg.Collector.UserAgents)
	v.SetDefault("collector.undated_fallback", cfg.Collector.UndatedFallback)

	v.SetDefault("fetcher.type", cfg.Fetcher.Type)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.tls_insecure", cfg.Fetcher.TLSInsecure)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)
	v.SetDefault("fetcher.headless", cfg.Fetcher.Headless)

	v.SetDefault("proxy.enabled", cfg.Proxy.Enabled)
	v.SetDefault("proxy.rotation", cfg.Proxy.Rotation)
	v.SetDefault("proxy.rotate_on_fail", cfg.Proxy.RotateOnFail)

	v.SetDefault("clustering.k", cfg.Clustering.K)
	v.SetDefault("clustering.seed", cfg.Clustering.Seed)
	v.SetDefault("clustering.max_features", cfg.Clustering.MaxFeatures)
	v.SetDefault("clustering.top_terms", cfg.Clustering.TopTerms)
	v.SetDefault("clustering.max_iter", cfg.Clustering.MaxIter)
	v.SetDefault("clustering.tolerance", cfg.Clustering.Tolerance)
	v.SetDefault("clustering.n_init", cfg.Clustering.NInit)
	v.SetDefault("clustering.text_field", cfg.Clustering.TextField)
	v.SetDefault("clustering.keep_generations", cfg.Clustering.KeepGenerations)

	v.SetDefault("schedule.daily", cfg.Schedule.Daily)
	v.SetDefault("schedule.poll_interval", cfg.Schedule.PollInterval)
	v.SetDefault("schedule.run_at_startup", cfg.Schedule.RunAtStartup)

	v.SetDefault("api.addr", cfg.API.Addr)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
