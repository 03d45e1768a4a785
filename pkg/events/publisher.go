package events

import "context"

// EventPublisher is the interface for publishing plugin execution events.
type EventPublisher interface {
	PublishExecuted(ctx context.Context, event *ExecutionEvent) error
}

// NoOpPublisher is an EventPublisher that does nothing (for hosts without events).
type NoOpPublisher struct{}

// PublishExecuted is a no-op.
func (p *NoOpPublisher) PublishExecuted(_ context.Context, _ *ExecutionEvent) error {
	return nil
}

// CallbackPublisher is an EventPublisher that calls a callback function (for testing).
type CallbackPublisher struct {
	callback func(ctx context.Context, event *ExecutionEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *ExecutionEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// PublishExecuted calls the callback.
func (p *CallbackPublisher) PublishExecuted(ctx context.Context, event *ExecutionEvent) error {
	return p.callback(ctx, event)
}
