// Package csvfile writes probe results as CSV with a domain,dns,http
// header. Unknown fields are written as empty cells.
package csvfile

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/Normaleshok/domain-checker/internal/domain"
	"github.com/Normaleshok/domain-checker/internal/repo"
)

var Header = []string{"domain", "dns", "http"}

type Sink struct {
	path string
	f    *os.File
	buf  bytes.Buffer
	end  int64 // size after the last complete flush
}

var _ repo.ResultSink = (*Sink)(nil)

// Create truncates path, writes the header and syncs it.
func Create(path string) (*Sink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	s := &Sink{path: path, f: f}
	if err := s.flush(func(w *csv.Writer) error { return w.Write(Header) }); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	return s, nil
}

func (s *Sink) Path() string { return s.path }

// Write renders the whole batch in memory and hands it to the file in a
// single write followed by fsync. A failed write or sync is rolled back, so
// a batch is either absent or complete.
func (s *Sink) Write(ctx context.Context, results []domain.ProbeResult) error {
	err := s.flush(func(w *csv.Writer) error {
		for _, r := range results {
			if err := w.Write(Row(r)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	return nil
}

func (s *Sink) flush(fill func(*csv.Writer) error) error {
	s.buf.Reset()
	w := csv.NewWriter(&s.buf)
	if err := fill(w); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	n, err := s.f.Write(s.buf.Bytes())
	if err == nil {
		err = s.f.Sync()
	}
	if err != nil {
		return multierr.Append(err, s.rollback())
	}
	s.end += int64(n)
	return nil
}

// rollback cuts the file back to the last complete flush so a failed batch
// leaves no partial record behind.
func (s *Sink) rollback() error {
	if err := s.f.Truncate(s.end); err != nil {
		return fmt.Errorf("rollback to %d: %w", s.end, err)
	}
	if _, err := s.f.Seek(s.end, io.SeekStart); err != nil {
		return fmt.Errorf("rollback to %d: %w", s.end, err)
	}
	return nil
}

func (s *Sink) Close() error {
	return multierr.Combine(s.f.Sync(), s.f.Close())
}

// Row is the CSV record for r.
func Row(r domain.ProbeResult) []string {
	return []string{string(r.Domain), r.DNS.String(), r.HTTP.String()}
}
