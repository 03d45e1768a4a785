package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const clearLogPrefix = "db:clear"

// ClearTraceLog truncates the trace log. The schema is preserved and the id
// sequence restarts.
func ClearTraceLog(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info(fmt.Sprintf("%s - Clearing %s", clearLogPrefix, TraceLogTable))

	if _, err := pool.Exec(ctx, `TRUNCATE TABLE `+TraceLogTable+` RESTART IDENTITY`); err != nil {
		return fmt.Errorf("%s - truncate failed: %w", clearLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Trace log cleared", clearLogPrefix))
	return nil
}
