package schedule

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/NewsLens/internal/observability"
	"github.com/IshaanNene/NewsLens/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// --- Triggers ---

func TestImmediateFiresOnce(t *testing.T) {
	now := time.Now()
	tr := NewImmediate(now)
	assert.True(t, tr.Due(now))
	assert.Equal(t, now, tr.Next())

	tr.Advance(now)
	assert.False(t, tr.Due(now.Add(time.Hour)))
	assert.True(t, tr.Next().IsZero())
}

func TestDailyTrigger(t *testing.T) {
	start := time.Date(2024, 1, 1, 1, 0, 0, 0, time.Local)
	tr, err := NewDaily("0 2 * * *", start)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 1, 1, 2, 0, 0, 0, time.Local), tr.Next())
	assert.False(t, tr.Due(start.Add(59*time.Minute)))
	assert.True(t, tr.Due(start.Add(time.Hour)))

	tr.Advance(start.Add(time.Hour))
	assert.Equal(t, time.Date(2024, 1, 2, 2, 0, 0, 0, time.Local), tr.Next())
}

func TestDailyTriggerSkipsMissedFirings(t *testing.T) {
	start := time.Date(2024, 1, 1, 1, 0, 0, 0, time.Local)
	tr, err := NewDaily("0 2 * * *", start)
	require.NoError(t, err)

	late := time.Date(2024, 1, 4, 9, 0, 0, 0, time.Local)
	assert.True(t, tr.Due(late))
	tr.Advance(late)
	assert.Equal(t, time.Date(2024, 1, 5, 2, 0, 0, 0, time.Local), tr.Next())
}

func TestDailyTriggerBadSpec(t *testing.T) {
	_, err := NewDaily("not a cron", time.Now())
	assert.Error(t, err)
}

// --- Runner ---

func TestRunnerAtMostOneInFlight(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	r := NewRunner(func(ctx context.Context, runID string) error {
		calls.Add(1)
		<-release
		return nil
	}, observability.NewMetrics(nil), testLogger)

	id, err := r.TryRun(context.Background(), "manual")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.True(t, r.Running())

	_, err = r.TryRun(context.Background(), "daily")
	assert.ErrorIs(t, err, types.ErrRunInProgress)

	close(release)
	r.Wait()

	st := r.Status()
	assert.False(t, st.Running)
	assert.Equal(t, int64(1), st.Runs)
	assert.Equal(t, int64(1), st.Skipped)
	require.NotNil(t, st.LastSuccess)
	assert.Equal(t, id, st.LastSuccess.ID)
	assert.Equal(t, int32(1), calls.Load())

	_, err = r.TryRun(context.Background(), "manual")
	require.NoError(t, err)
	r.Wait()
	assert.Equal(t, int32(2), calls.Load())
}

func TestRunnerRecoversPanic(t *testing.T) {
	r := NewRunner(func(ctx context.Context, runID string) error {
		panic("boom")
	}, observability.NewMetrics(nil), testLogger)

	_, err := r.TryRun(context.Background(), "manual")
	require.NoError(t, err)
	r.Wait()

	st := r.Status()
	require.NotNil(t, st.Last)
	assert.Contains(t, st.Last.Error, "boom")
	assert.Nil(t, st.LastSuccess)
	assert.False(t, st.Running)
}

func TestRunnerRecordsFailure(t *testing.T) {
	r := NewRunner(func(ctx context.Context, runID string) error {
		return errors.New("collect failed")
	}, observability.NewMetrics(nil), testLogger)

	_, err := r.TryRun(context.Background(), "manual")
	require.NoError(t, err)
	r.Wait()
	assert.Equal(t, "collect failed", r.Status().Last.Error)
}

func TestRunnerDetachedFromCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var sawCancel atomic.Bool
	started := make(chan struct{})
	r := NewRunner(func(runCtx context.Context, runID string) error {
		close(started)
		time.Sleep(20 * time.Millisecond)
		sawCancel.Store(runCtx.Err() != nil)
		return nil
	}, observability.NewMetrics(nil), testLogger)

	_, err := r.TryRun(ctx, "manual")
	require.NoError(t, err)
	<-started
	cancel()
	r.Wait()
	assert.False(t, sawCancel.Load())
}

// --- Scheduler ---

// alwaysDue fires on every poll.
type alwaysDue struct{ advanced atomic.Int32 }

func (a *alwaysDue) Name() string { return "always" }
func (a *alwaysDue) Due(time.Time) bool { return true }
func (a *alwaysDue) Advance(time.Time) { a.advanced.Add(1) }
func (a *alwaysDue) Next() time.Time { return time.Time{} }

func TestSchedulerRunsAtStartupAndSkipsWhileBusy(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	runner := NewRunner(func(ctx context.Context, runID string) error {
		if calls.Add(1) == 1 {
			<-release
		}
		return nil
	}, observability.NewMetrics(nil), testLogger)

	busy := &alwaysDue{}
	s := NewScheduler(runner, 5*time.Millisecond, testLogger, NewImmediate(time.Now()), busy)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return busy.advanced.Load() >= 3 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "triggers while busy must be skipped, not queued")
	assert.GreaterOrEqual(t, runner.Status().Skipped, int64(3))

	close(release)
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.False(t, runner.Running())
}
