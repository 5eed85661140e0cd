// Package usage persists per-query cost records and maintains the daily
// usage aggregate. All writes are best-effort from the caller's point of
// view; the query pipeline logs and discards any error returned here.
package usage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/docentlabs/docent/internal/log"
	"github.com/docentlabs/docent/internal/rag"
)

// Execer is the subset of pgx connection behavior the store needs.
// Satisfied by *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store writes usage records to PostgreSQL.
type Store struct {
	db     Execer
	logger log.Logger
}

// New creates a Store over db.
func New(db Execer, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, logger: logger}
}

const insertQueryUsage = `
INSERT INTO query_usage (id, model_id, input_tokens, output_tokens, user_query, latency_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// Record inserts one query usage row.
func (s *Store) Record(ctx context.Context, rec rag.UsageRecord) error {
	_, err := s.db.Exec(ctx, insertQueryUsage,
		uuid.NewString(),
		rec.ModelID,
		rec.InputTokens,
		rec.OutputTokens,
		rec.UserQuery,
		rec.LatencyMS,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert query usage: %w", err)
	}

	s.logger.Debug("usage recorded",
		"model_id", rec.ModelID,
		"input_tokens", rec.InputTokens,
		"output_tokens", rec.OutputTokens)
	return nil
}

// Daily aggregates are recomputed from query_usage rather than incremented,
// so concurrent refreshes for the same day converge on the same value.
const upsertDailyMetrics = `
INSERT INTO usage_metrics (metric_date, metric_type, total_queries, total_input_tokens, total_output_tokens)
SELECT created_at::date, 'query', COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0)
FROM query_usage
WHERE created_at::date = CURRENT_DATE
GROUP BY created_at::date
ON CONFLICT (metric_date, metric_type) DO UPDATE SET
	total_queries = EXCLUDED.total_queries,
	total_input_tokens = EXCLUDED.total_input_tokens,
	total_output_tokens = EXCLUDED.total_output_tokens
`

// RefreshMetrics recomputes today's usage aggregate.
func (s *Store) RefreshMetrics(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, upsertDailyMetrics); err != nil {
		return fmt.Errorf("refresh usage metrics: %w", err)
	}
	return nil
}
