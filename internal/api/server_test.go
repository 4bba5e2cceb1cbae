package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vfrank66/lucas-download/internal/metrics"
	"github.com/vfrank66/lucas-download/internal/progress"
	"github.com/vfrank66/lucas-download/internal/progress/sinks"
)

func testStats(t *testing.T) *sinks.StatsSink {
	t.Helper()
	stats := sinks.NewStatsSink()
	runID := progress.UUIDToBytes(uuid.New())
	require.NoError(t, stats.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: time.Now().UTC(), Stage: progress.StageRunStart},
		{RunID: runID, TS: time.Now().UTC(), Stage: progress.StageFetchStart, Edition: "a"},
		{
			RunID: runID, TS: time.Now().UTC(), Stage: progress.StageFetchDone,
			Edition: "a", Outcome: progress.OutcomeSuccess, Bytes: 42,
		},
	}))
	return stats
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	metrics.Init()

	srv := NewServer("127.0.0.1:0", testStats(t), zap.NewNop())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestProgressSnapshot(t *testing.T) {
	t.Parallel()
	metrics.Init()

	srv := NewServer("127.0.0.1:0", testStats(t), zap.NewNop())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var snap sinks.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.NotEmpty(t, snap.RunID)
	require.Equal(t, int64(1), snap.Success)
	require.Equal(t, int64(42), snap.Bytes)
}

func TestProgressWithoutStats(t *testing.T) {
	t.Parallel()
	metrics.Init()

	srv := NewServer("127.0.0.1:0", nil, zap.NewNop())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	metrics.Init()

	srv := NewServer("127.0.0.1:0", testStats(t), zap.NewNop())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "downloader_active_workers")
}

func TestStartAndShutdown(t *testing.T) {
	t.Parallel()
	metrics.Init()

	srv := NewServer("127.0.0.1:0", testStats(t), zap.NewNop())
	srv.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
}
