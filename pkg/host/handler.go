package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/morezero/record-plugins/pkg/db"
	"github.com/morezero/record-plugins/pkg/events"
	"github.com/morezero/record-plugins/pkg/plugin"
	"github.com/morezero/record-plugins/pkg/registration"
	"github.com/morezero/record-plugins/pkg/semver"
	"github.com/morezero/record-plugins/pkg/tracing"
)

const logPrefix = "host:handler"

// TraceStore persists the trace of one invocation.
type TraceStore interface {
	InsertTrace(ctx context.Context, batch db.TraceBatch) error
}

// Handler runs one plugin for decoded invocation requests.
type Handler struct {
	plugin    plugin.Invoker
	reg       *registration.Resolved
	publisher events.EventPublisher
	traces    TraceStore
	now       func() time.Time
}

// NewHandlerParams holds the dependencies of a Handler. Publisher and Traces are optional.
type NewHandlerParams struct {
	Plugin       plugin.Invoker
	Registration *registration.Resolved
	Publisher    events.EventPublisher
	Traces       TraceStore
}

// NewHandler creates a new Handler.
func NewHandler(p NewHandlerParams) *Handler {
	publisher := p.Publisher
	if publisher == nil {
		publisher = &events.NoOpPublisher{}
	}
	reg := p.Registration
	if reg == nil {
		reg = registration.Resolve(registration.Default())
	}
	return &Handler{
		plugin:    p.Plugin,
		reg:       reg,
		publisher: publisher,
		traces:    p.Traces,
		now:       time.Now,
	}
}

// Registration returns the registration the handler filters on.
func (h *Handler) Registration() *registration.Resolved {
	return h.reg
}

// Handle validates req, runs the plugin when a step is registered for it and
// returns the outcome. It never returns nil.
func (h *Handler) Handle(ctx context.Context, req *InvocationRequest) *InvocationResponse {
	start := h.now()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	correlationID := correlationOf(req)
	slog.Debug(fmt.Sprintf("%s - message=%s entity=%s id=%s", logPrefix, req.MessageName, req.PrimaryEntityName, req.ID))

	if req.MessageName == "" {
		return errorResponse(req.ID, CodeInvalidArgument, "messageName is required", false)
	}
	if req.Depth > MaxDepth {
		return errorResponse(req.ID, CodeDepthExceeded, fmt.Sprintf("invocation depth %d exceeds %d", req.Depth, MaxDepth), false)
	}
	if r := h.reg.HostVersionRange(); r != "" && !semver.SatisfiesRange(req.HostVersion, r) {
		return errorResponse(req.ID, CodeHostVersionUnsupported,
			fmt.Sprintf("host version %q does not satisfy %q", req.HostVersion, r), false)
	}

	params, err := decodeParameters(req.InputParameters)
	if err != nil {
		return errorResponse(req.ID, CodeInvalidArgument, err.Error(), false)
	}

	if !h.reg.Accepts(req.MessageName, req.PrimaryEntityName) {
		slog.Debug(fmt.Sprintf("%s - no step for %s on %q, skipping", logPrefix, req.MessageName, req.PrimaryEntityName))
		resp := &InvocationResponse{ID: req.ID, Ok: true, Skipped: true}
		h.publish(ctx, req, correlationID, resp, start)
		return resp
	}

	buf := tracing.NewBuffer()
	inv := &invocation{
		message: req.MessageName,
		params:  params,
		sink:    tracing.Multi(buf, tracing.SlogSink{Prefix: h.reg.Name() + " " + correlationID}),
	}

	resp := &InvocationResponse{ID: req.ID, Ok: true}
	if err := h.plugin.Invoke(ctx, inv); err != nil {
		resp.Ok = false
		resp.Error = errorDetail(err)
	}
	resp.Trace = buf.Lines()

	h.storeTrace(ctx, req, correlationID, resp)
	h.publish(ctx, req, correlationID, resp, start)
	return resp
}

func (h *Handler) storeTrace(ctx context.Context, req *InvocationRequest, correlationID string, resp *InvocationResponse) {
	if h.traces == nil || len(resp.Trace) == 0 {
		return
	}
	err := h.traces.InsertTrace(ctx, db.TraceBatch{
		CorrelationID: correlationID,
		Plugin:        h.reg.Name(),
		Message:       req.MessageName,
		PrimaryEntity: req.PrimaryEntityName,
		Ok:            resp.Ok,
		Lines:         resp.Trace,
	})
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to persist trace for %s: %v", logPrefix, correlationID, err))
	}
}

func (h *Handler) publish(ctx context.Context, req *InvocationRequest, correlationID string, resp *InvocationResponse, start time.Time) {
	now := h.now()
	event := &events.ExecutionEvent{
		Plugin:        h.reg.Name(),
		Message:       req.MessageName,
		PrimaryEntity: req.PrimaryEntityName,
		CorrelationID: correlationID,
		Ok:            resp.Ok,
		Skipped:       resp.Skipped,
		DurationMs:    now.Sub(start).Milliseconds(),
		Timestamp:     now.UTC().Format(time.RFC3339),
	}
	if resp.Error != nil {
		event.ErrorMessage = resp.Error.Message
		event.StatusCode = resp.Error.StatusCode
	}
	if err := h.publisher.PublishExecuted(ctx, event); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish execution event: %v", logPrefix, err))
	}
}

func correlationOf(req *InvocationRequest) string {
	if req.Ctx != nil && req.Ctx.CorrelationID != "" {
		return req.Ctx.CorrelationID
	}
	return req.ID
}

// errorDetail maps a plugin failure onto the wire. Normalized plugin errors keep
// their status, fault and cause; anything else is an internal error.
func errorDetail(err error) *ErrorDetail {
	var perr *plugin.Error
	if !errors.As(err, &perr) {
		return &ErrorDetail{Code: CodeInternalError, Message: err.Error(), Retryable: true}
	}

	detail := &ErrorDetail{Code: CodePluginError, Message: perr.Message, Fault: perr.Fault}
	if code, ok := perr.Status(); ok {
		detail.StatusCode = &code
		detail.Retryable = code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
	}
	if cause := perr.Cause(); cause != nil {
		detail.Cause = cause.Error()
	}
	return detail
}

func errorResponse(id, code, message string, retryable bool) *InvocationResponse {
	return &InvocationResponse{
		ID: id,
		Ok: false,
		Error: &ErrorDetail{
			Code:      code,
			Message:   message,
			Retryable: retryable,
		},
	}
}

// invocation is the per-request plugin.Invocation.
type invocation struct {
	message string
	params  map[string]interface{}
	sink    plugin.TraceSink
}

func (i *invocation) MessageName() string                     { return i.message }
func (i *invocation) InputParameters() map[string]interface{} { return i.params }
func (i *invocation) TraceSink() plugin.TraceSink             { return i.sink }
