package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/IshaanNene/NewsLens/internal/types"
)

// Scheduler is a single polling loop that hands due triggers to a Runner.
type Scheduler struct {
	runner   *Runner
	triggers []Trigger
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewScheduler creates a Scheduler polling every interval.
func NewScheduler(runner *Runner, interval time.Duration, logger *slog.Logger, triggers ...Trigger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		triggers: triggers,
		interval: interval,
		now:      time.Now,
		logger:   logger.With("component", "scheduler"),
	}
}

// Run polls until ctx is cancelled, then waits for the in-flight run to
// finish before returning. Triggers are checked once immediately and then
// on every tick.
func (s *Scheduler) Run(ctx context.Context) error {
	for _, t := range s.triggers {
		if next := t.Next(); !next.IsZero() {
			s.logger.Info("trigger armed", "trigger", t.Name(), "next", next.Format(time.RFC3339))
		}
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping, waiting for in-flight run")
			s.runner.Wait()
			return nil
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

// poll fires every due trigger. A trigger that comes due while a run is in
// flight is skipped and advanced to its next firing.
func (s *Scheduler) poll(ctx context.Context) {
	now := s.now()
	for _, t := range s.triggers {
		if !t.Due(now) {
			continue
		}
		runID, err := s.runner.TryRun(ctx, t.Name())
		t.Advance(now)

		switch {
		case errors.Is(err, types.ErrRunInProgress):
		case err != nil:
			s.logger.Error("trigger failed to start run", "trigger", t.Name(), "error", err)
		default:
			s.logger.Info("run started", "trigger", t.Name(), "run_id", runID)
		}
		if next := t.Next(); !next.IsZero() {
			s.logger.Debug("trigger advanced", "trigger", t.Name(), "next", next.Format(time.RFC3339))
		}
	}
}

// Runner returns the runner the scheduler feeds.
func (s *Scheduler) Runner() *Runner { return s.runner }

// Triggers returns the configured triggers.
func (s *Scheduler) Triggers() []Trigger { return s.triggers }
