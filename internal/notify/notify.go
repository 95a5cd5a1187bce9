package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Normaleshok/domain-checker/internal/domain"
)

// Summary describes a finished run.
type Summary struct {
	RunID  string
	Input  string
	Output string
	State  string
	Stats  domain.RunStats
}

func (s Summary) Title() string {
	switch s.State {
	case "DONE":
		return "✅ Domain check finished"
	case "INTERRUPTED":
		return "⏸ Domain check interrupted"
	default:
		return "🔴 Domain check failed"
	}
}

func (s Summary) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s\n", s.RunID)
	fmt.Fprintf(&b, "Input: %s\nOutput: %s\n", s.Input, s.Output)
	fmt.Fprintf(&b, "Processed: %d/%d\n", s.Stats.Processed, s.Stats.Total)
	fmt.Fprintf(&b, "DNS resolved: %d, HTTP alive: %d\n", s.Stats.DNSResolved, s.Stats.HTTPAlive)
	fmt.Fprintf(&b, "Batches: %d/%d (failed %d)\n", s.Stats.BatchesDone, s.Stats.Batches, s.Stats.BatchesFailed)
	fmt.Fprintf(&b, "Elapsed: %s", s.Stats.Elapsed.Round(time.Second))
	return b.String()
}

type Notifier interface {
	Notify(ctx context.Context, s Summary) error
}

// Multi notifies every non-nil notifier and returns the first error.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, s Summary) error {
	var firstErr error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, s); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
