package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/IshaanNene/NewsLens/internal/observability"
	"github.com/IshaanNene/NewsLens/internal/types"
)

// RunFunc executes one pipeline run.
type RunFunc func(ctx context.Context, runID string) error

// RunInfo describes a run.
type RunInfo struct {
	ID       string        `json:"id"`
	Trigger  string        `json:"trigger"`
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished,omitzero"`
	Duration time.Duration `json:"duration,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Status is a snapshot of the runner.
type Status struct {
	Running     bool     `json:"running"`
	Current     *RunInfo `json:"current,omitempty"`
	Last        *RunInfo `json:"last,omitempty"`
	LastSuccess *RunInfo `json:"last_success,omitempty"`
	Runs        int64    `json:"runs"`
	Skipped     int64    `json:"skipped"`
}

// Runner executes at most one run at a time. A request that arrives while a
// run is in flight is rejected, never queued.
type Runner struct {
	fn      RunFunc
	running atomic.Bool
	wg      sync.WaitGroup
	metrics *observability.Metrics
	logger  *slog.Logger

	mu          sync.Mutex
	current     *RunInfo
	last        *RunInfo
	lastSuccess *RunInfo
	runs        int64
	skipped     int64
}

// NewRunner creates a Runner around fn.
func NewRunner(fn RunFunc, metrics *observability.Metrics, logger *slog.Logger) *Runner {
	return &Runner{
		fn:      fn,
		metrics: metrics,
		logger:  logger.With("component", "runner"),
	}
}

// TryRun starts a run in the background and returns its id. It returns
// types.ErrRunInProgress if a run is already executing. The run is detached
// from ctx cancellation; it only inherits its values.
func (r *Runner) TryRun(ctx context.Context, trigger string) (string, error) {
	if !r.running.CompareAndSwap(false, true) {
		r.mu.Lock()
		r.skipped++
		r.mu.Unlock()
		r.metrics.TriggersSkipped.WithLabelValues(trigger).Inc()
		r.logger.Warn("run already in progress, trigger skipped", "trigger", trigger)
		return "", types.ErrRunInProgress
	}

	info := &RunInfo{
		ID:      uuid.NewString(),
		Trigger: trigger,
		Started: time.Now(),
	}
	r.mu.Lock()
	r.current = info
	r.mu.Unlock()
	r.metrics.RunInFlight.Set(1)

	r.wg.Add(1)
	go r.execute(context.WithoutCancel(ctx), info)
	return info.ID, nil
}

func (r *Runner) execute(ctx context.Context, info *RunInfo) {
	defer r.wg.Done()

	err := r.safeRun(ctx, info.ID)

	finished := time.Now()
	duration := finished.Sub(info.Started)
	result := "success"
	if err != nil {
		result = "failure"
		r.logger.Error("run failed",
			"run_id", info.ID,
			"trigger", info.Trigger,
			"duration", duration,
			"error", err,
		)
	} else {
		r.metrics.LastSuccess.Set(float64(finished.Unix()))
		r.logger.Info("run finished", "run_id", info.ID, "trigger", info.Trigger, "duration", duration)
	}
	r.metrics.RunsTotal.WithLabelValues(info.Trigger, result).Inc()

	r.mu.Lock()
	info.Finished = finished
	info.Duration = duration
	if err != nil {
		info.Error = err.Error()
	} else {
		r.lastSuccess = info
	}
	r.current = nil
	r.last = info
	r.runs++
	r.mu.Unlock()

	r.metrics.RunInFlight.Set(0)
	r.running.Store(false)
}

// safeRun turns a panic inside the run into an error.
func (r *Runner) safeRun(ctx context.Context, runID string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("run panicked", "run_id", runID, "panic", p, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.fn(ctx, runID)
}

// Running reports whether a run is in flight.
func (r *Runner) Running() bool { return r.running.Load() }

// Wait blocks until the in-flight run, if any, has finished.
func (r *Runner) Wait() { r.wg.Wait() }

// Status returns a snapshot of the runner state.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Status{
		Running: r.running.Load(),
		Runs:    r.runs,
		Skipped: r.skipped,
	}
	if r.current != nil {
		c := *r.current
		s.Current = &c
	}
	if r.last != nil {
		l := *r.last
		s.Last = &l
	}
	if r.lastSuccess != nil {
		l := *r.lastSuccess
		s.LastSuccess = &l
	}
	return s
}
