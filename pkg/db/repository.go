package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoLogPrefix = "db:repository"

var traceLogColumns = []string{"correlation_id", "plugin", "message", "primary_entity", "seq", "line", "ok", "created"}

// TraceLogRepository stores and reads plugin trace lines.
type TraceLogRepository struct {
	pool *pgxpool.Pool
}

// NewTraceLogRepository creates a TraceLogRepository with the given pool.
func NewTraceLogRepository(pool *pgxpool.Pool) *TraceLogRepository {
	return &TraceLogRepository{pool: pool}
}

// InsertTrace writes every line of batch with COPY. Empty batches are ignored.
func (r *TraceLogRepository) InsertTrace(ctx context.Context, batch TraceBatch) error {
	if len(batch.Lines) == 0 {
		return nil
	}
	slog.Debug(fmt.Sprintf("%s - InsertTrace correlation=%s lines=%d", repoLogPrefix, batch.CorrelationID, len(batch.Lines)))

	n, err := r.pool.CopyFrom(ctx, pgx.Identifier{TraceLogTable}, traceLogColumns, pgx.CopyFromRows(traceRows(batch, time.Now().UTC())))
	if err != nil {
		return fmt.Errorf("%s - copy into %s failed: %w", repoLogPrefix, TraceLogTable, err)
	}
	if int(n) != len(batch.Lines) {
		return fmt.Errorf("%s - copied %d of %d trace lines", repoLogPrefix, n, len(batch.Lines))
	}
	return nil
}

// traceRows lays batch out in traceLogColumns order; seq starts at 1.
func traceRows(batch TraceBatch, now time.Time) [][]any {
	rows := make([][]any, len(batch.Lines))
	for i, line := range batch.Lines {
		rows[i] = []any{batch.CorrelationID, batch.Plugin, batch.Message, batch.PrimaryEntity, int32(i + 1), line, batch.Ok, now}
	}
	return rows
}

// ListByCorrelation returns the trace lines of one invocation in write order.
func (r *TraceLogRepository) ListByCorrelation(ctx context.Context, correlationID string) ([]TraceLogEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, correlation_id, plugin, message, primary_entity, seq, line, ok, created
		 FROM plugin_trace_log
		 WHERE correlation_id = $1
		 ORDER BY seq`, correlationID)
	if err != nil {
		return nil, fmt.Errorf("%s - list trace failed: %w", repoLogPrefix, err)
	}

	entries, err := pgx.CollectRows(rows, pgx.RowToStructByName[TraceLogEntry])
	if err != nil {
		return nil, fmt.Errorf("%s - scan trace failed: %w", repoLogPrefix, err)
	}
	return entries, nil
}
