package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Normaleshok/domain-checker/internal/config"
	"github.com/Normaleshok/domain-checker/internal/domain"
	"github.com/Normaleshok/domain-checker/internal/probe"
)

// Metrics receives per-probe events. *metrics.Collector implements it.
type Metrics interface {
	ProbeStarted()
	ProbeFinished(r domain.ProbeResult, took time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) ProbeStarted() {}
func (nopMetrics) ProbeFinished(domain.ProbeResult, time.Duration) {}

// Pool runs a prober over a batch with at most Workers probes in flight.
// One Pool is reused for every batch of a run.
type Pool struct {
	Logger  *zap.Logger
	Prober  probe.Prober
	Workers int
	Limiter *rate.Limiter // nil means unlimited
	Metrics Metrics
}

// NewPool validates workers and builds a pool. perSecond <= 0 disables the
// dispatch rate cap.
func NewPool(logger *zap.Logger, p probe.Prober, workers int, perSecond float64, m Metrics) (*Pool, error) {
	if workers < 1 {
		return nil, &config.InvalidConfigError{
			Problems: []string{fmt.Sprintf("worker count must be >= 1, got %d", workers)},
		}
	}
	if m == nil {
		m = nopMetrics{}
	}
	pool := &Pool{Logger: logger, Prober: p, Workers: workers, Metrics: m}
	if perSecond > 0 {
		pool.Limiter = rate.NewLimiter(rate.Limit(perSecond), workers)
	}
	return pool, nil
}

// Run probes every domain of b and returns the results in b's order.
// Callers that must not abandon a batch halfway pass a context that is
// never cancelled; probes are bounded by their own timeouts.
func (p *Pool) Run(ctx context.Context, b domain.Batch) []domain.ProbeResult {
	results := make([]domain.ProbeResult, len(b.Domains))
	sem := make(chan struct{}, p.Workers)
	var wg sync.WaitGroup

	for i, d := range b.Domains {
		if p.Limiter != nil {
			if err := p.Limiter.Wait(ctx); err != nil {
				p.Logger.Warn("pool_rate_wait_error", zap.Int("batch", b.Index), zap.Error(err))
			}
		}
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem }()
			defer wg.Done()
			results[i] = p.probeOne(ctx, d)
		}()
	}

	wg.Wait()
	return results
}

// probeOne isolates a single probe: a panic becomes a result with both
// fields Unknown and is logged, siblings are unaffected.
func (p *Pool) probeOne(ctx context.Context, d domain.Domain) (res domain.ProbeResult) {
	start := time.Now()
	p.Metrics.ProbeStarted()
	defer func() {
		if r := recover(); r != nil {
			p.Logger.Error("probe_panic_recovered",
				zap.String("domain", string(d)),
				zap.Any("panic", r),
				zap.Stack("stack"))
			res = domain.ProbeResult{
				Domain:    d,
				Reason:    fmt.Sprintf("panic: %v", r),
				CheckedAt: time.Now().UTC(),
			}
		}
		p.Metrics.ProbeFinished(res, time.Since(start))
	}()
	return p.Prober.Probe(ctx, d)
}
