// Package schedule drives the daily pipeline: triggers decide when a run is
// due and a single-flight runner executes it.
package schedule

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Trigger decides when the pipeline should run.
type Trigger interface {
	// Name identifies the trigger in logs and metrics.
	Name() string

	// Due reports whether the trigger has fired at now.
	Due(now time.Time) bool

	// Advance is called after a due trigger has been handled, whether the
	// run started or was skipped, and moves the trigger to its next firing.
	Advance(now time.Time)

	// Next returns the next firing time, or the zero time if the trigger
	// will not fire again.
	Next() time.Time
}

// Immediate fires once, as soon as it is polled.
type Immediate struct {
	mu    sync.Mutex
	fired bool
	at    time.Time
}

// NewImmediate creates a trigger due at start.
func NewImmediate(start time.Time) *Immediate { return &Immediate{at: start} }

func (t *Immediate) Name() string { return "startup" }

func (t *Immediate) Due(time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.fired
}

func (t *Immediate) Advance(time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fired = true
}

func (t *Immediate) Next() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired {
		return time.Time{}
	}
	return t.at
}

// Daily fires on a cron schedule, by default once a day.
type Daily struct {
	mu    sync.Mutex
	spec  string
	sched cron.Schedule
	next  time.Time
}

// NewDaily parses a standard 5-field cron spec and schedules the first
// firing strictly after now.
func NewDaily(spec string, now time.Time) (*Daily, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return &Daily{spec: spec, sched: sched, next: sched.Next(now)}, nil
}

func (t *Daily) Name() string { return "daily" }

func (t *Daily) Due(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !now.Before(t.next)
}

// Advance skips every firing up to now, so a process that was suspended
// past several firings runs once rather than catching up.
func (t *Daily) Advance(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next = t.sched.Next(now)
}

func (t *Daily) Next() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next
}

// Spec returns the cron expression.
func (t *Daily) Spec() string { return t.spec }
