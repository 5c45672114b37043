package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/IshaanNene/NewsLens/internal/api"
	"github.com/IshaanNene/NewsLens/internal/schedule"
)

var (
	serveAddr      string
	serveNoStartup bool
)

// serveCmd creates the "serve" subcommand: the daily scheduler and the
// presenter API in one process.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daily scheduler and the presenter API",
		Long: `Run the pipeline on a daily schedule and serve the clustered dataset.

The pipeline runs once at startup (unless disabled) and then every day at
schedule.daily. Only one run is in flight at a time; a trigger that fires
during a run is skipped.`,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&serveAddr, "addr", "", "API listen address (overrides api.addr)")
	cmd.Flags().BoolVar(&serveNoStartup, "no-startup-run", false, "do not run the pipeline at startup")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	if serveAddr != "" {
		cfg.API.Addr = serveAddr
	}

	now := time.Now()
	var triggers []schedule.Trigger
	if cfg.Schedule.RunAtStartup && !serveNoStartup {
		triggers = append(triggers, schedule.NewImmediate(now))
	}
	daily, err := schedule.NewDaily(cfg.Schedule.CronSpec(), now)
	if err != nil {
		return err
	}
	triggers = append(triggers, daily)

	runner := schedule.NewRunner(a.engine.RunOnce, a.metrics, a.logger)
	sched := schedule.NewScheduler(runner, cfg.Schedule.PollInterval, a.logger, triggers...)
	srv := api.NewServer(cfg, runner, a.metrics, a.logger,
		api.WithReports(a.engine),
		api.WithScheduler(sched),
	)

	ctx, stop := signalContext()
	defer stop()

	a.logger.Info("newslens serving",
		"addr", cfg.API.Addr,
		"daily", daily.Spec(),
		"next_run", daily.Next().Format(time.RFC3339),
		"data_dir", cfg.Data.Dir,
	)
	fmt.Printf("📰 NewsLens serving on %s (daily at %s)\n", cfg.API.Addr, cfg.Schedule.Daily)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(ctx) })
	g.Go(func() error { return srv.Run(ctx) })
	return g.Wait()
}
