package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Normaleshok/domain-checker/internal/domain"
	"github.com/Normaleshok/domain-checker/internal/metrics"
	"github.com/Normaleshok/domain-checker/internal/pipeline"
	"github.com/Normaleshok/domain-checker/internal/repo/memory"
)

type fixedProgress struct {
	state pipeline.State
	stats domain.RunStats
}

func (f fixedProgress) Snapshot() (pipeline.State, domain.RunStats) { return f.state, f.stats }

func newTestServer() *Server {
	s := NewServer(zap.NewNop(), "run-1", fixedProgress{
		state: pipeline.StateProcessing,
		stats: domain.RunStats{Total: 10, Processed: 4, Batches: 3, BatchesDone: 1, DNSResolved: 3, HTTPAlive: 2, Elapsed: 1500 * time.Millisecond},
	})
	return s
}

func get(t *testing.T, h http.Handler, path string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, newTestServer().Router(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestProgress(t *testing.T) {
	rec := get(t, newTestServer().Router(), "/api/progress")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got progressResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "PROCESSING_BATCH", got.State)
	assert.Equal(t, 10, got.Total)
	assert.Equal(t, 4, got.Processed)
	assert.Equal(t, 2, got.HTTPAlive)
	assert.InDelta(t, 1.5, got.ElapsedSec, 0.001)
}

func TestResults_RecentWithLimit(t *testing.T) {
	sink := memory.New(0)
	require.NoError(t, sink.Write(context.Background(), []domain.ProbeResult{
		{Domain: "a.example", DNS: domain.True, HTTP: domain.True},
		{Domain: "b.example", DNS: domain.True},
		{Domain: "bad..domain", DNS: domain.False},
	}))
	s := newTestServer()
	s.Recent = sink
	h := s.Router()

	rec := get(t, h, "/api/results?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "b.example", got[0]["domain"])
	assert.Equal(t, true, got[0]["dns"])
	assert.Nil(t, got[0]["http"])
	assert.Equal(t, false, got[1]["dns"])

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/results?limit=zero").Code)
}

func TestResults_NoSourceIsEmptyList(t *testing.T) {
	rec := get(t, newTestServer().Router(), "/api/results")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestAPIKeysGuardAPIOnly(t *testing.T) {
	s := newTestServer()
	s.Keys = []string{"secret"}
	h := s.Router()

	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/api/progress").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/api/progress", "X-API-Key", "secret").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/api/progress", "Authorization", "Bearer secret").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)
	c.RecordBatch(true, 20*time.Millisecond)

	s := newTestServer()
	s.Gatherer = reg
	rec := get(t, s.Router(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `domaincheck_batches_total{status="ok"} 1`)

	// without a gatherer the route is absent
	assert.Equal(t, http.StatusNotFound, get(t, newTestServer().Router(), "/metrics").Code)
}
