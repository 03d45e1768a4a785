// Package events defines the execution events a plugin host publishes after
// each invocation.
package events

// ExecutionEvent is emitted once per handled invocation.
type ExecutionEvent struct {
	Plugin        string `json:"plugin"`
	Message       string `json:"message"`
	PrimaryEntity string `json:"primaryEntity,omitempty"`
	CorrelationID string `json:"correlationId"`
	Ok            bool   `json:"ok"`
	Skipped       bool   `json:"skipped,omitempty"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
	StatusCode    *int   `json:"statusCode,omitempty"`
	DurationMs    int64  `json:"durationMs"`
	Timestamp     string `json:"timestamp"`
}
