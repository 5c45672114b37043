// Package engine wires the daily pipeline: collect, merge, cluster.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/IshaanNene/NewsLens/internal/cluster"
	"github.com/IshaanNene/NewsLens/internal/collector"
	"github.com/IshaanNene/NewsLens/internal/config"
	"github.com/IshaanNene/NewsLens/internal/fetcher"
	"github.com/IshaanNene/NewsLens/internal/merge"
	"github.com/IshaanNene/NewsLens/internal/observability"
	"github.com/IshaanNene/NewsLens/internal/types"
)

// Stage names, also used as metric labels.
const (
	StageCollect = "collect"
	StageMerge   = "merge"
	StageCluster = "cluster"
)

// StageTiming records how one stage of a run went.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Report summarizes the most recent pipeline run.
type Report struct {
	RunID    string        `json:"run_id"`
	Date     string        `json:"date"`
	Stages   []StageTiming `json:"stages"`
	Sources  int           `json:"sources"`
	Failed   []string      `json:"failed_sources,omitempty"`
	Merged   int           `json:"merged_rows"`
	Clusters int           `json:"clusters"`
	Output   string        `json:"output,omitempty"`
}

// Engine runs the three stages in order. It holds no state across runs
// other than the last report; runs must not overlap.
type Engine struct {
	cfg       *config.Config
	collector *collector.Collector
	merger    *merge.Merger
	clusterer *cluster.Clusterer
	metrics   *observability.Metrics
	logger    *slog.Logger
	now       func() time.Time

	mu   sync.RWMutex
	last *Report
}

// New creates an Engine fetching through f.
func New(cfg *config.Config, f fetcher.Fetcher, metrics *observability.Metrics, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		collector: collector.New(cfg, f, metrics, logger),
		merger:    merge.New(cfg.Data, metrics, logger),
		clusterer: cluster.New(cfg.Clustering, cfg.Data.ClusteredDir(), metrics, logger),
		metrics:   metrics,
		logger:    logger.With("component", "engine"),
		now:       time.Now,
	}
}

// Collector returns the collection stage.
func (e *Engine) Collector() *collector.Collector { return e.collector }

// Merger returns the merge stage.
func (e *Engine) Merger() *merge.Merger { return e.merger }

// Clusterer returns the clustering stage.
func (e *Engine) Clusterer() *cluster.Clusterer { return e.clusterer }

// Today returns the collection date for the current instant.
func (e *Engine) Today() string {
	return e.now().Format("2006-01-02")
}

// RunOnce executes collect, merge and cluster for today. Source failures
// during collection are reported but do not stop the run; a merge or
// clustering failure aborts it with a *types.StageError and leaves the
// previous clustering output in place.
func (e *Engine) RunOnce(ctx context.Context, runID string) error {
	logger := e.logger.With("run_id", runID)
	report := &Report{RunID: runID, Date: e.Today()}
	defer e.setLast(report)

	logger.Info("pipeline run started", "date", report.Date)
	start := time.Now()

	err := e.stage(ctx, report, StageCollect, func(ctx context.Context) error {
		cr, err := e.collector.Collect(ctx, report.Date)
		if err != nil {
			return err
		}
		report.Sources = len(cr.Sources)
		report.Failed = cr.FailedSources()
		return nil
	})
	if err != nil {
		return err
	}

	var merged *merge.Result
	err = e.stage(ctx, report, StageMerge, func(context.Context) error {
		var err error
		merged, err = e.merger.Merge(report.Date)
		if err != nil {
			return err
		}
		report.Merged = len(merged.Articles)
		return nil
	})
	if err != nil {
		return err
	}

	err = e.stage(ctx, report, StageCluster, func(context.Context) error {
		res, err := e.clusterer.Run(merged.Articles)
		if err != nil {
			return err
		}
		report.Clusters = len(res.Keywords)
		report.Output = res.Dir
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("pipeline run finished",
		"merged", report.Merged,
		"clusters", report.Clusters,
		"failed_sources", report.Failed,
		"duration", time.Since(start),
	)
	return nil
}

func (e *Engine) stage(ctx context.Context, report *Report, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	d := time.Since(start)
	e.metrics.StageDuration.WithLabelValues(name).Observe(d.Seconds())

	timing := StageTiming{Stage: name, Duration: d}
	if err != nil {
		timing.Error = err.Error()
	}
	report.Stages = append(report.Stages, timing)

	if err != nil {
		e.logger.Error("stage failed", "run_id", report.RunID, "stage", name, "error", err)
		return &types.StageError{RunID: report.RunID, Stage: name, Err: err}
	}
	e.logger.Debug("stage finished", "run_id", report.RunID, "stage", name, "duration", d)
	return nil
}

func (e *Engine) setLast(r *Report) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.last = r
}

// LastReport returns a copy of the most recent run's report, or nil.
func (e *Engine) LastReport() *Report {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.last == nil {
		return nil
	}
	r := *e.last
	r.Stages = append([]StageTiming(nil), e.last.Stages...)
	r.Failed = append([]string(nil), e.last.Failed...)
	return &r
}
