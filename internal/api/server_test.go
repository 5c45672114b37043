package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/NewsLens/internal/cluster"
	"github.com/IshaanNene/NewsLens/internal/config"
	"github.com/IshaanNene/NewsLens/internal/observability"
	"github.com/IshaanNene/NewsLens/internal/schedule"
	"github.com/IshaanNene/NewsLens/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type fakeRunner struct {
	busy  bool
	calls int
}

func (f *fakeRunner) TryRun(_ context.Context, trigger string) (string, error) {
	f.calls++
	if f.busy {
		return "", types.ErrRunInProgress
	}
	return "run-" + trigger, nil
}

func (f *fakeRunner) Status() schedule.Status {
	return schedule.Status{Running: f.busy, Runs: int64(f.calls)}
}

func newServer(t *testing.T) (*Server, *config.Config, *fakeRunner) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Data.Dir = t.TempDir()
	runner := &fakeRunner{}
	return NewServer(cfg, runner, observability.NewMetrics(nil), testLogger), cfg, runner
}

func seed(t *testing.T, cfg *config.Config) {
	t.Helper()
	clustering := cfg.Clustering
	clustering.K = 2
	now := time.Now().UTC()
	in := []*types.Article{
		{Title: "A", URL: "https://x/a", Newspaper: "The Herald", Category: "Business", Date: "2024-01-01", Timestamp: now},
		{Title: "B", URL: "https://x/b", Newspaper: "The Chronicle", Category: "Sports", Date: "2024-01-01", Timestamp: now},
		{Title: "C", URL: "https://x/c", Newspaper: "The Herald", Category: "Sports", Date: "2024-01-01", Timestamp: now},
	}
	_, err := cluster.New(clustering, cfg.Data.ClusteredDir(), observability.NewMetrics(nil), testLogger).Run(in)
	require.NoError(t, err)
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestClustersNoDataYet(t *testing.T) {
	s, _, _ := newServer(t)
	rec := do(t, s, http.MethodGet, "/api/clusters")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"no data yet"}`, rec.Body.String())
}

func TestClusters(t *testing.T) {
	s, cfg, _ := newServer(t)
	seed(t, cfg)

	rec := do(t, s, http.MethodGet, "/api/clusters")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, 3.0, body["total"])
	assert.Equal(t, true, body["has_keywords"])

	clusters := body["clusters"].([]any)
	require.Len(t, clusters, 2)
	first := clusters[0].(map[string]any)
	assert.NotEmpty(t, first["label"])
	assert.NotEmpty(t, first["articles"])

	rec = do(t, s, http.MethodGet, "/api/clusters?newspaper=The+Chronicle&articles=false")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, 1.0, body["total"])
	for _, c := range body["clusters"].([]any) {
		assert.Nil(t, c.(map[string]any)["articles"])
	}

	rec = do(t, s, http.MethodGet, "/api/clusters?category=Business,Sports")
	assert.Equal(t, 3.0, decode(t, rec)["total"])
}

func TestRun(t *testing.T) {
	s, _, runner := newServer(t)

	rec := do(t, s, http.MethodPost, "/api/run")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "run-manual", decode(t, rec)["run_id"])

	runner.busy = true
	rec = do(t, s, http.MethodPost, "/api/run")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/run")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatus(t *testing.T) {
	s, cfg, _ := newServer(t)

	body := decode(t, do(t, s, http.MethodGet, "/api/status"))
	assert.Contains(t, body, "scheduler")
	assert.NotContains(t, body, "dataset")

	seed(t, cfg)
	body = decode(t, do(t, s, http.MethodGet, "/api/status"))
	ds := body["dataset"].(map[string]any)
	assert.Equal(t, 3.0, ds["articles"])
}

func TestHealthMetricsAndDashboard(t *testing.T) {
	s, _, _ := newServer(t)

	rec := do(t, s, http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	rec = do(t, s, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	rec = do(t, s, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "<title>NewsLens</title>"))

	rec = do(t, s, http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Data.Dir = t.TempDir()
	cfg.Metrics.Enabled = false
	s := NewServer(cfg, &fakeRunner{}, observability.NewMetrics(nil), testLogger)

	rec := do(t, s, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
