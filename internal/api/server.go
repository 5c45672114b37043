// Package api serves the clustered dataset and pipeline controls over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/IshaanNene/NewsLens/internal/config"
	"github.com/IshaanNene/NewsLens/internal/dataset"
	"github.com/IshaanNene/NewsLens/internal/engine"
	"github.com/IshaanNene/NewsLens/internal/observability"
	"github.com/IshaanNene/NewsLens/internal/schedule"
	"github.com/IshaanNene/NewsLens/internal/types"
)

// RunController is the part of the scheduler the API drives.
type RunController interface {
	TryRun(ctx context.Context, trigger string) (string, error)
	Status() schedule.Status
}

// ReportProvider exposes the last pipeline report.
type ReportProvider interface {
	LastReport() *engine.Report
}

// Server provides the presenter's data API and run control.
type Server struct {
	mux     *http.ServeMux
	addr    string
	dataDir string
	runner  RunController
	reports ReportProvider
	sched   *schedule.Scheduler
	metrics *observability.Metrics
	metCfg  config.MetricsConfig
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithReports adds the last pipeline report to /api/status.
func WithReports(p ReportProvider) Option {
	return func(s *Server) { s.reports = p }
}

// WithScheduler adds the trigger schedule to /api/status.
func WithScheduler(sched *schedule.Scheduler) Option {
	return func(s *Server) { s.sched = sched }
}

// NewServer creates an API server reading clustering output from dataDir.
func NewServer(cfg *config.Config, runner RunController, metrics *observability.Metrics, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		mux:     http.NewServeMux(),
		addr:    cfg.API.Addr,
		dataDir: cfg.Data.ClusteredDir(),
		runner:  runner,
		metrics: metrics,
		metCfg:  cfg.Metrics,
		logger:  logger.With("component", "api_server"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerRoutes()
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler { return s.mux }

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("API server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleDashboard)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("POST /api/run", s.handleRun)
	s.mux.HandleFunc("GET /api/clusters", s.handleClusters)

	if s.metCfg.Enabled && s.metrics != nil {
		s.mux.Handle("GET "+s.metCfg.Path, s.metrics.Handler())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": config.Version,
	})
}

type triggerInfo struct {
	Name string    `json:"name"`
	Next time.Time `json:"next"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"scheduler": s.runner.Status(),
	}
	if s.sched != nil {
		var triggers []triggerInfo
		for _, t := range s.sched.Triggers() {
			triggers = append(triggers, triggerInfo{Name: t.Name(), Next: t.Next()})
		}
		body["triggers"] = triggers
	}
	if s.reports != nil {
		if rep := s.reports.LastReport(); rep != nil {
			body["last_report"] = rep
		}
	}
	if snap, err := dataset.LoadCurrent(s.dataDir); err == nil {
		body["dataset"] = map[string]any{
			"generation":   snap.Generation,
			"updated_at":   snap.UpdatedAt,
			"articles":     len(snap.Articles),
			"has_keywords": snap.HasKeywords,
		}
	}
	s.jsonResponse(w, http.StatusOK, body)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id, err := s.runner.TryRun(r.Context(), "manual")
	if errors.Is(err, types.ErrRunInProgress) {
		s.jsonResponse(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		s.jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	s.jsonResponse(w, http.StatusAccepted, map[string]string{"status": "started", "run_id": id})
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	snap, err := dataset.LoadCurrent(s.dataDir)
	if errors.Is(err, types.ErrNoData) {
		s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"error": "no data yet"})
		return
	}
	if err != nil {
		s.logger.Error("load dataset failed", "error", err)
		s.jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": "dataset unreadable"})
		return
	}

	q := r.URL.Query()
	filter := dataset.Filter{
		Newspapers: splitParam(q["newspaper"]),
		Categories: splitParam(q["category"]),
	}
	withArticles := true
	if v := q.Get("articles"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			withArticles = b
		}
	}

	clusters := snap.Clusters(filter, withArticles)
	total := 0
	for _, c := range clusters {
		total += c.Size
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"generation":   snap.Generation,
		"updated_at":   snap.UpdatedAt,
		"has_keywords": snap.HasKeywords,
		"total":        total,
		"clusters":     clusters,
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(dashboardHTML))
}

// splitParam accepts both repeated and comma-separated query values.
func splitParam(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
