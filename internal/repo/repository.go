package repo

import (
	"context"

	"go.uber.org/multierr"

	"github.com/Normaleshok/domain-checker/internal/domain"
)

// ResultSink persists probe results one batch at a time. A nil error from
// Write means the whole slice is durable. Only the pipeline goroutine
// calls it, so implementations need no locking for writers.
type ResultSink interface {
	Write(ctx context.Context, results []domain.ProbeResult) error
	Close() error
}

// Multi fans a batch out to several sinks. Every sink is attempted even if
// an earlier one fails; the errors are combined.
type Multi []ResultSink

func (m Multi) Write(ctx context.Context, results []domain.ProbeResult) error {
	var err error
	for _, s := range m {
		if s == nil {
			continue
		}
		err = multierr.Append(err, s.Write(ctx, results))
	}
	return err
}

func (m Multi) Close() error {
	var err error
	for _, s := range m {
		if s == nil {
			continue
		}
		err = multierr.Append(err, s.Close())
	}
	return err
}
