package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Normaleshok/domain-checker/internal/domain"
	"github.com/Normaleshok/domain-checker/internal/repo"
)

var _ repo.ResultSink = (*Sink)(nil)

const SchemaSQL = `
CREATE TABLE IF NOT EXISTS probe_results (
  id          BIGSERIAL PRIMARY KEY,
  run_id      TEXT NOT NULL,
  batch       INTEGER NOT NULL,
  domain      TEXT NOT NULL,
  dns         BOOLEAN NULL,
  http        BOOLEAN NULL,
  status_code INTEGER NULL,
  checked_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_probe_results_run ON probe_results (run_id, id);
`

var columns = []string{"run_id", "batch", "domain", "dns", "http", "status_code", "checked_at"}

// Sink mirrors results into PostgreSQL. NULL in dns/http means the check
// was not attempted.
type Sink struct {
	pool  *pgxpool.Pool
	log   *zap.Logger
	runID string
	batch int
}

func New(ctx context.Context, dsn, runID string, log *zap.Logger) (*Sink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, SchemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Sink{pool: pool, log: log, runID: runID}, nil
}

// Write copies the batch in one COPY statement, so it lands atomically.
func (s *Sink) Write(ctx context.Context, results []domain.ProbeResult) error {
	batch := s.batch
	s.batch++
	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{"probe_results"}, columns,
		pgx.CopyFromSlice(len(results), func(i int) ([]any, error) {
			r := results[i]
			var status *int
			if r.StatusCode != 0 {
				status = &r.StatusCode
			}
			return []any{s.runID, batch, string(r.Domain), r.DNS.Ptr(), r.HTTP.Ptr(), status, r.CheckedAt}, nil
		}))
	if err != nil {
		return fmt.Errorf("copy results: %w", err)
	}
	s.log.Debug("pg_batch_written", zap.String("run_id", s.runID), zap.Int("batch", batch), zap.Int64("rows", n))
	return nil
}

func (s *Sink) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
