package db

import "time"

// TraceLogTable is the table holding plugin trace lines.
const TraceLogTable = "plugin_trace_log"

// TraceLogEntry is a row in plugin_trace_log.
type TraceLogEntry struct {
	ID            int64     `db:"id" json:"id"`
	CorrelationID string    `db:"correlation_id" json:"correlation_id"`
	Plugin        string    `db:"plugin" json:"plugin"`
	Message       string    `db:"message" json:"message"`
	PrimaryEntity string    `db:"primary_entity" json:"primary_entity"`
	Seq           int32     `db:"seq" json:"seq"`
	Line          string    `db:"line" json:"line"`
	Ok            bool      `db:"ok" json:"ok"`
	Created       time.Time `db:"created" json:"created"`
}

// TraceBatch is the trace output of one invocation.
type TraceBatch struct {
	CorrelationID string
	Plugin        string
	Message       string
	PrimaryEntity string
	Ok            bool
	Lines         []string
}
