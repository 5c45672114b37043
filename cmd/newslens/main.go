package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/NewsLens/internal/config"
)

var (
	cfgFile string
	verbose bool
	dataDir string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "newslens",
		Short: "NewsLens: daily news collection and topic clustering",
		Long: `NewsLens collects articles from configured newspapers once a day,
merges the per-source files into one dataset and groups the articles into
topical clusters for the presenter.

Stages:
  • collect  one CSV batch per source under data/daily
  • merge    combined_latest.csv plus a dated archive
  • cluster  TF-IDF, k-means and a 2D projection with cluster keywords`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (overrides data.dir)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(collectCmd())
	rootCmd.AddCommand(mergeCmd())
	rootCmd.AddCommand(clusterCmd())
	rootCmd.AddCommand(clustersCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads, overrides and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	if dataDir != "" {
		cfg.Data.Dir = dataDir
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
}

// setupLogger creates the structured logger described by cfg. The returned
// closer releases the log file, if any.
func setupLogger(cfg config.LoggingConfig) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var out io.Writer
	var closer io.Closer = io.NopCloser(nil)
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler), closer, nil
}
