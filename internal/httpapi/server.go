// Package httpapi serves read-only status for a run in progress.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Normaleshok/domain-checker/internal/domain"
	"github.com/Normaleshok/domain-checker/internal/httpapi/middleware"
	"github.com/Normaleshok/domain-checker/internal/pipeline"
)

const defaultResultsLimit = 100

type ProgressSource interface {
	Snapshot() (pipeline.State, domain.RunStats)
}

type ResultsSource interface {
	Results() []domain.ProbeResult
}

type Server struct {
	Logger   *zap.Logger
	RunID    string
	Progress ProgressSource
	Recent   ResultsSource       // optional
	Gatherer prometheus.Gatherer // optional
	Keys     []string            // guards /api when non-empty
	RPM      int                 // per-client limit on /api, 0 disables
}

func NewServer(l *zap.Logger, runID string, p ProgressSource) *Server {
	return &Server{Logger: l, RunID: runID, Progress: p}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if s.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(s.RPM, max(s.RPM/2, 1)))
		r.Use(middleware.RequireKey(s.Keys))
		r.Get("/progress", s.handleProgress)
		r.Get("/results", s.handleResults)
	})

	return r
}

type progressResponse struct {
	RunID         string  `json:"run_id"`
	State         string  `json:"state"`
	Total         int     `json:"total"`
	Processed     int     `json:"processed"`
	Batches       int     `json:"batches"`
	BatchesDone   int     `json:"batches_done"`
	BatchesFailed int     `json:"batches_failed"`
	DNSResolved   int     `json:"dns_resolved"`
	HTTPAlive     int     `json:"http_alive"`
	ElapsedSec    float64 `json:"elapsed_sec"`
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	state, st := s.Progress.Snapshot()
	writeJSON(w, http.StatusOK, progressResponse{
		RunID:         s.RunID,
		State:         string(state),
		Total:         st.Total,
		Processed:     st.Processed,
		Batches:       st.Batches,
		BatchesDone:   st.BatchesDone,
		BatchesFailed: st.BatchesFailed,
		DNSResolved:   st.DNSResolved,
		HTTPAlive:     st.HTTPAlive,
		ElapsedSec:    st.Elapsed.Seconds(),
	})
}

// handleResults returns the most recent results, newest last.
// ?limit=N caps the count (default 100).
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if s.Recent == nil {
		writeJSON(w, http.StatusOK, []domain.ProbeResult{})
		return
	}
	limit := defaultResultsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	rs := s.Recent.Results()
	if len(rs) > limit {
		rs = rs[len(rs)-limit:]
	}
	if rs == nil {
		rs = []domain.ProbeResult{}
	}
	writeJSON(w, http.StatusOK, rs)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
