package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/IshaanNene/NewsLens/internal/collector"
	"github.com/IshaanNene/NewsLens/internal/config"
	"github.com/IshaanNene/NewsLens/internal/engine"
	"github.com/IshaanNene/NewsLens/internal/fetcher"
	"github.com/IshaanNene/NewsLens/internal/observability"
	"github.com/IshaanNene/NewsLens/internal/storage"
)

var (
	stageDate   string
	stageSource string
)

// app bundles what every pipeline command needs.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	fetcher fetcher.Fetcher
	engine  *engine.Engine
	logFile io.Closer
}

// newApp loads the config and builds the engine.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, logFile, err := setupLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	f, err := fetcher.New(cfg, logger)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("create fetcher: %w", err)
	}

	metrics := observability.NewMetrics(nil)
	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		fetcher: f,
		engine:  engine.New(cfg, f, metrics, logger),
		logFile: logFile,
	}, nil
}

func (a *app) Close() {
	if err := a.fetcher.Close(); err != nil {
		a.logger.Warn("close fetcher", "error", err)
	}
	a.logFile.Close()
}

// date returns the --date flag or today's collection date.
func (a *app) date() string {
	if stageDate != "" {
		return stageDate
	}
	return a.engine.Today()
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func addDateFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&stageDate, "date", "", "collection date YYYY-MM-DD (default today)")
}

// runCmd creates the "run" subcommand.
func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run collect, merge and cluster once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext()
			defer stop()

			start := time.Now()
			runErr := a.engine.RunOnce(ctx, uuid.NewString())
			if rep := a.engine.LastReport(); rep != nil {
				printRunReport(rep)
			}
			if runErr != nil {
				return runErr
			}
			fmt.Printf("\n✅ Run complete in %s\n", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

// collectCmd creates the "collect" subcommand.
func collectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect today's articles into per-source batch files",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext()
			defer stop()

			date := a.date()
			if stageSource != "" {
				sr, err := a.engine.Collector().CollectSource(ctx, stageSource, date)
				if sr != nil {
					printSourceReports([]collector.SourceReport{*sr})
				}
				return err
			}

			rep, err := a.engine.Collector().Collect(ctx, date)
			if err != nil {
				return err
			}
			printSourceReports(rep.Sources)
			if failed := rep.FailedSources(); len(failed) > 0 {
				fmt.Printf("\n⚠️  %d source(s) failed: %v\n", len(failed), failed)
			}
			return nil
		},
	}
	addDateFlag(cmd)
	cmd.Flags().StringVarP(&stageSource, "source", "s", "", "collect only this source")
	return cmd
}

// mergeCmd creates the "merge" subcommand.
func mergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge a day's batch files into the unified dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.engine.Merger().Merge(a.date())
			if err != nil {
				return err
			}
			fmt.Printf("Merged %d rows from %d file(s)\n", len(res.Articles), len(res.Files))
			if len(res.Skipped) > 0 {
				fmt.Printf("   Skipped:  %v\n", res.Skipped)
			}
			fmt.Printf("   Latest:   %s\n", res.LatestPath)
			if res.Archived {
				fmt.Printf("   Archive:  %s\n", res.ArchivePath)
			} else {
				fmt.Printf("   Archive:  %s (already present, kept)\n", res.ArchivePath)
			}
			return nil
		},
	}
	addDateFlag(cmd)
	return cmd
}

// clusterCmd creates the "cluster" subcommand.
func clusterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cluster",
		Short: "Cluster the latest unified dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			articles, err := storage.ReadArticles(a.cfg.Data.LatestPath())
			if err != nil {
				return err
			}
			res, err := a.engine.Clusterer().Run(articles)
			if err != nil {
				return err
			}
			fmt.Printf("Clustered %d articles into %d clusters\n", len(res.Articles), len(res.Keywords))
			fmt.Printf("   Vocabulary: %d terms\n", res.Vocab)
			fmt.Printf("   Output:     %s\n", res.Dir)
			return nil
		},
	}
}

func printSourceReports(reports []collector.SourceReport) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Source", "Leads", "Articles", "Undated", "Dropped", "Failed", "Duration", "Error"})
	for _, r := range reports {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		t.AppendRow(table.Row{
			r.Source, r.Leads, r.Articles, r.Undated, r.Dropped, r.Failed,
			r.Duration.Round(time.Millisecond), errText,
		})
	}
	t.Render()
}

func printRunReport(rep *engine.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Run " + rep.RunID + " (" + rep.Date + ")")
	t.AppendHeader(table.Row{"Stage", "Duration", "Error"})
	for _, s := range rep.Stages {
		t.AppendRow(table.Row{s.Stage, s.Duration.Round(time.Millisecond), s.Error})
	}
	t.AppendFooter(table.Row{"merged", rep.Merged, fmt.Sprintf("%d clusters", rep.Clusters)})
	t.Render()

	if len(rep.Failed) > 0 {
		fmt.Printf("⚠️  Failed sources: %v\n", rep.Failed)
	}
}
