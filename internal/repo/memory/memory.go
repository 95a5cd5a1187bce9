package memory

import (
	"context"
	"sync"

	"github.com/Normaleshok/domain-checker/internal/domain"
	"github.com/Normaleshok/domain-checker/internal/repo"
)

// Sink keeps results in memory. With a positive limit only the most
// recent limit results are retained. Reads are safe while a run writes.
type Sink struct {
	mu      sync.RWMutex
	limit   int
	batches int
	results []domain.ProbeResult
}

var _ repo.ResultSink = (*Sink)(nil)

func New(limit int) *Sink {
	return &Sink{limit: limit, results: make([]domain.ProbeResult, 0, 128)}
}

func (m *Sink) Write(ctx context.Context, rs []domain.ProbeResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
	m.results = append(m.results, rs...)
	if m.limit > 0 && len(m.results) > m.limit {
		drop := len(m.results) - m.limit
		m.results = append(m.results[:0], m.results[drop:]...)
	}
	return nil
}

func (m *Sink) Close() error { return nil }

// Results returns a copy of the retained results, oldest first.
func (m *Sink) Results() []domain.ProbeResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.ProbeResult(nil), m.results...)
}

// Batches is the number of Write calls seen.
func (m *Sink) Batches() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.batches
}
