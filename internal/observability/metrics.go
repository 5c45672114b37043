package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "newslens"

// Metrics tracks operational metrics for the pipeline.
type Metrics struct {
	registry *prometheus.Registry

	// Run metrics
	RunsTotal       *prometheus.CounterVec
	TriggersSkipped *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	RunInFlight     prometheus.Gauge
	LastSuccess     prometheus.Gauge

	// Collector metrics
	FetchRequests     *prometheus.CounterVec
	ArticlesCollected *prometheus.CounterVec
	ArticlesDropped   *prometheus.CounterVec
	ArticlesUndated   *prometheus.CounterVec
	SourceFailures    *prometheus.CounterVec

	// Merge and clustering metrics
	MergedRows        prometheus.Gauge
	MergeFilesSkipped prometheus.Counter
	ClustersProduced  prometheus.Gauge
}

// NewMetrics creates the metric set on reg. A nil reg gets a fresh registry
// carrying the Go runtime and process collectors.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by trigger and result",
		}, []string{"trigger", "result"}),
		TriggersSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_triggers_skipped_total",
			Help:      "Triggers dropped because a run was already in flight",
		}, []string{"trigger"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of each pipeline stage",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 18), // 10ms to ~22min
		}, []string{"stage"}),
		RunInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_run_in_flight",
			Help:      "1 while a pipeline run is executing",
		}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful pipeline run",
		}),

		FetchRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "fetch_requests_total",
			Help:      "Fetches by source and status class",
		}, []string{"source", "status"}),
		ArticlesCollected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "articles_collected_total",
			Help:      "Articles written to daily batch files",
		}, []string{"source"}),
		ArticlesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "articles_dropped_total",
			Help:      "Articles dropped by the item pipeline",
		}, []string{"source", "stage"}),
		ArticlesUndated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "articles_undated_total",
			Help:      "Articles with no discoverable publication date",
		}, []string{"source"}),
		SourceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "source_failures_total",
			Help:      "Source runs that ended in an error",
		}, []string{"source"}),

		MergedRows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "merge",
			Name:      "rows",
			Help:      "Rows in the latest unified dataset",
		}),
		MergeFilesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "merge",
			Name:      "files_skipped_total",
			Help:      "Daily files skipped because they could not be read",
		}),
		ClustersProduced: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cluster",
			Name:      "clusters",
			Help:      "Populated clusters in the current output",
		}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the metrics in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// StatusClass buckets an HTTP status code into "2xx", "3xx", ... or "error"
// for transport failures (code 0).
func StatusClass(code int) string {
	if code <= 0 {
		return "error"
	}
	return strconv.Itoa(code/100) + "xx"
}
