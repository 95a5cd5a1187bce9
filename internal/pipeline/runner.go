// Package pipeline drives a run: load, optional whitelist intersection,
// batching, then probe-and-sink one batch at a time.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Normaleshok/domain-checker/internal/batch"
	"github.com/Normaleshok/domain-checker/internal/domain"
	"github.com/Normaleshok/domain-checker/internal/notify"
	"github.com/Normaleshok/domain-checker/internal/repo"
	"github.com/Normaleshok/domain-checker/internal/source"
)

type State string

const (
	StateInit        State = "INIT"
	StateLoading     State = "LOADING"
	StateBatching    State = "BATCHING"
	StateProcessing  State = "PROCESSING_BATCH"
	StateDone        State = "DONE"
	StateInterrupted State = "INTERRUPTED"
	StateFailed      State = "FAILED"
)

// Job is one run's input.
type Job struct {
	MainPath      string
	WhitelistPath string // optional
	BatchSize     int
	Output        string // shown in the run summary only
}

type Loader interface {
	Load(path string) (*source.List, error)
	LoadSet(path string) (source.Set, *source.List, error)
}

// BatchRunner probes a batch and returns results aligned to its order.
type BatchRunner interface {
	Run(ctx context.Context, b domain.Batch) []domain.ProbeResult
}

type Metrics interface {
	RecordBatch(ok bool, took time.Duration)
	SetPending(n int)
}

// SinkOpener opens the output once loading and batching succeeded.
type SinkOpener func(ctx context.Context) (repo.ResultSink, error)

// BatchError reports a batch whose results could not all be persisted.
type BatchError struct {
	Index int
	Size  int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d (%d domains): %v", e.Index, e.Size, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Report is the outcome of a run that got past loading.
type Report struct {
	RunID    string
	State    State
	Stats    domain.RunStats
	BatchErr error // every *BatchError, combined
}

type Runner struct {
	Logger   *zap.Logger
	RunID    string
	Loader   Loader
	Pool     BatchRunner
	Open     SinkOpener
	Metrics  Metrics         // optional
	Notifier notify.Notifier // optional
	OnBatch  func(domain.RunStats)

	mu    sync.RWMutex
	state State
	stats domain.RunStats
	start time.Time
}

func NewRunner(logger *zap.Logger, loader Loader, pool BatchRunner, open SinkOpener) *Runner {
	id := uuid.NewString()
	return &Runner{
		Logger: logger.With(zap.String("run_id", id)),
		RunID:  id,
		Loader: loader,
		Pool:   pool,
		Open:   open,
		state:  StateInit,
	}
}

// Snapshot is safe to call from any goroutine while Run is in progress.
func (r *Runner) Snapshot() (State, domain.RunStats) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := r.stats
	if !r.start.IsZero() && st.Elapsed == 0 {
		st.Elapsed = time.Since(r.start)
	}
	return r.state, st
}

// Run executes job. Cancelling ctx stops the run between batches: the
// batch in flight is finished and sunk first. The returned error is
// non-nil only when the run FAILED before probing; per-batch failures
// are in Report.BatchErr.
func (r *Runner) Run(ctx context.Context, job Job) (Report, error) {
	r.mu.Lock()
	r.start = time.Now()
	r.mu.Unlock()

	r.setState(StateLoading)
	domains, err := r.load(job)
	if err != nil {
		return r.fail(ctx, job, fmt.Errorf("load: %w", err))
	}

	r.setState(StateBatching)
	batches, err := batch.Split(domains, job.BatchSize)
	if err != nil {
		return r.fail(ctx, job, err)
	}
	r.mu.Lock()
	r.stats.Total = len(domains)
	r.stats.Batches = len(batches)
	r.mu.Unlock()
	r.setPending(len(domains))

	sink, err := r.Open(ctx)
	if err != nil {
		return r.fail(ctx, job, fmt.Errorf("open sink: %w", err))
	}
	defer func() {
		if err := sink.Close(); err != nil {
			r.Logger.Warn("sink_close_error", zap.Error(err))
		}
	}()

	if len(domains) == 0 {
		r.Logger.Info("no_domains_to_check")
		return r.finish(ctx, job, StateDone, nil), nil
	}

	// In-flight work must outlive an interrupt.
	workCtx := context.WithoutCancel(ctx)
	var batchErr error
	final := StateDone
	for _, b := range batches {
		if ctx.Err() != nil {
			final = StateInterrupted
			r.Logger.Warn("run_interrupted",
				zap.Int("next_batch", b.Index),
				zap.Error(ctx.Err()))
			break
		}
		r.setState(StateProcessing)
		if err := r.runBatch(workCtx, b, sink); err != nil {
			r.Logger.Error("batch_failed", zap.Int("batch", b.Index), zap.Error(err))
			batchErr = multierr.Append(batchErr, err)
		}
	}
	return r.finish(ctx, job, final, batchErr), nil
}

func (r *Runner) load(job Job) ([]domain.Domain, error) {
	main, err := r.Loader.Load(job.MainPath)
	if err != nil {
		return nil, err
	}
	r.Logger.Info("domains_loaded",
		zap.String("path", main.Path),
		zap.String("encoding", main.Encoding),
		zap.Int("count", len(main.Domains)))
	if job.WhitelistPath == "" {
		return main.Domains, nil
	}

	wl, wlList, err := r.Loader.LoadSet(job.WhitelistPath)
	if err != nil {
		return nil, err
	}
	kept := source.Intersect(main.Domains, wl)
	r.Logger.Info("whitelist_intersection",
		zap.String("path", wlList.Path),
		zap.String("encoding", wlList.Encoding),
		zap.Int("whitelist", len(wl)),
		zap.Int("matched", len(kept)))
	return kept, nil
}

// runBatch probes b and writes its results. Whatever the pool returned is
// handed to the sink even when something went wrong along the way.
func (r *Runner) runBatch(ctx context.Context, b domain.Batch, sink repo.ResultSink) (err error) {
	start := time.Now()
	var results []domain.ProbeResult
	defer func() {
		if p := recover(); p != nil {
			err = &BatchError{Index: b.Index, Size: b.Len(), Err: fmt.Errorf("panic: %v", p)}
		}
		r.record(b, results, err == nil, time.Since(start))
	}()

	results = r.Pool.Run(ctx, b)
	if len(results) != b.Len() {
		err = &BatchError{Index: b.Index, Size: b.Len(),
			Err: fmt.Errorf("pool returned %d results", len(results))}
	}
	if werr := sink.Write(ctx, results); werr != nil {
		err = multierr.Append(err, &BatchError{Index: b.Index, Size: b.Len(), Err: werr})
	}
	return err
}

func (r *Runner) record(b domain.Batch, results []domain.ProbeResult, ok bool, took time.Duration) {
	r.mu.Lock()
	r.stats.Processed += len(results)
	r.stats.BatchesDone++
	if !ok {
		r.stats.BatchesFailed++
	}
	for _, res := range results {
		if res.DNS == domain.True {
			r.stats.DNSResolved++
		}
		if res.HTTP == domain.True {
			r.stats.HTTPAlive++
		}
	}
	pending := r.stats.Total - r.stats.Processed
	r.mu.Unlock()

	if r.Metrics != nil {
		r.Metrics.RecordBatch(ok, took)
	}
	r.setPending(pending)

	_, st := r.Snapshot()
	r.Logger.Info("batch_done",
		zap.Int("batch", b.Index),
		zap.Int("size", b.Len()),
		zap.Bool("ok", ok),
		zap.Int("processed", st.Processed),
		zap.Int("total", st.Total),
		zap.Duration("took", took))
	if r.OnBatch != nil {
		r.OnBatch(st)
	}
}

func (r *Runner) fail(ctx context.Context, job Job, err error) (Report, error) {
	r.Logger.Error("run_failed", zap.Error(err))
	rep := r.finish(ctx, job, StateFailed, nil)
	return rep, err
}

func (r *Runner) finish(ctx context.Context, job Job, final State, batchErr error) Report {
	r.mu.Lock()
	r.stats.Elapsed = time.Since(r.start)
	r.mu.Unlock()
	r.setState(final)

	state, st := r.Snapshot()
	r.Logger.Info("run_finished",
		zap.String("state", string(state)),
		zap.Int("processed", st.Processed),
		zap.Int("total", st.Total),
		zap.Int("batches_failed", st.BatchesFailed),
		zap.Int("dns_resolved", st.DNSResolved),
		zap.Int("http_alive", st.HTTPAlive),
		zap.Duration("elapsed", st.Elapsed))

	if r.Notifier != nil {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		sum := notify.Summary{
			RunID:  r.RunID,
			Input:  job.MainPath,
			Output: job.Output,
			State:  string(state),
			Stats:  st,
		}
		if err := r.Notifier.Notify(nctx, sum); err != nil {
			r.Logger.Warn("notify_error", zap.Error(err))
		}
	}
	return Report{RunID: r.RunID, State: state, Stats: st, BatchErr: batchErr}
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	prev := r.state
	r.state = s
	r.mu.Unlock()
	if prev != s {
		r.Logger.Debug("state_change", zap.String("from", string(prev)), zap.String("to", string(s)))
	}
}

func (r *Runner) setPending(n int) {
	if r.Metrics != nil {
		r.Metrics.SetPending(n)
	}
}
