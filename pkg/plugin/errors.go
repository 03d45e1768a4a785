package plugin

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"
)

const errorsLogPrefix = "plugin:errors"

// ErrorPrefix starts every synthesized normalized error message.
const ErrorPrefix = "[ERROR]: "

// APIError is a failure carrying a structured status code from a downstream
// call. Callbacks return (or wrap) one to have the code reach the host.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}

// Fault is the payload of a remote-service fault envelope.
type Fault struct {
	ErrorCode    int                    `json:"errorCode"`
	Message      string                 `json:"message"`
	TraceText    string                 `json:"traceText,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
	ErrorDetails map[string]interface{} `json:"errorDetails,omitempty"`
	InnerFault   *Fault                 `json:"innerFault,omitempty"`
}

// FaultError is a failure raised by a remote service call.
type FaultError struct {
	Reason string
	Fault  *Fault
}

func (e *FaultError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	if e.Fault != nil {
		return e.Fault.Message
	}
	return "remote fault"
}

// Description renders the fault reason followed by the whole fault chain.
func (e *FaultError) Description() string {
	var b strings.Builder
	b.WriteString(e.Error())
	for f, depth := e.Fault, 0; f != nil; f, depth = f.InnerFault, depth+1 {
		if depth == 0 {
			b.WriteString("; fault")
		} else {
			b.WriteString("; inner fault")
		}
		fmt.Fprintf(&b, " code=%d message=%q", f.ErrorCode, f.Message)
		if f.TraceText != "" {
			fmt.Fprintf(&b, " trace=%q", f.TraceText)
		}
	}
	return b.String()
}

// Error is the single error shape returned to the host. It carries a message
// and at most one of: a status code, a remote fault, or a cause.
type Error struct {
	Message string
	Fault   *Fault

	status    int
	hasStatus bool
	cause     error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Status returns the forwarded status code, if the failure carried one.
func (e *Error) Status() (int, bool) {
	return e.status, e.hasStatus
}

// Cause returns the original failure for unclassified errors, or the
// *FaultError itself when it arrived without a fault payload. Otherwise nil.
func (e *Error) Cause() error {
	return e.cause
}

// panicError is a recovered callback panic.
type panicError struct {
	value interface{}
	stack string
}

func (e *panicError) Error() string {
	return fmt.Sprintf("plugin panic: %v", e.value)
}

func (e *panicError) Unwrap() error {
	if err, ok := e.value.(error); ok {
		return err
	}
	return nil
}

func (e *panicError) StackTrace() string {
	return e.stack
}

type stackTracer interface {
	StackTrace() string
}

const (
	categoryAPI     = "ApiFailure"
	categoryFault   = "RemoteFault"
	categoryUnknown = "UnknownFailure"
)

// Translate classifies err and returns the normalized error. Before returning
// it offers one "<category> was thrown. <stack trace>" line to trace, which may
// be nil. Translate(nil, ...) returns nil.
func Translate(err error, trace func(string)) *Error {
	return translate(err, trace, true)
}

func translate(err error, trace func(string), withStack bool) *Error {
	if err == nil {
		return nil
	}

	var (
		category string
		out      *Error
		apiErr   *APIError
		faultErr *FaultError
	)
	switch {
	case errors.As(err, &apiErr):
		category = categoryAPI
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Error()
		}
		out = &Error{Message: msg, status: apiErr.Code, hasStatus: true}
	case errors.As(err, &faultErr):
		category = categoryFault
		out = &Error{Message: ErrorPrefix + faultErr.Description(), Fault: faultErr.Fault}
		if faultErr.Fault == nil {
			out.cause = faultErr
		}
	default:
		category = categoryUnknown
		out = &Error{Message: ErrorPrefix + err.Error(), cause: err}
	}

	if trace != nil {
		offerTrace(trace, diagnosticLine(category, err, withStack))
	}
	return out
}

// offerTrace calls trace, absorbing a panic so the translated error survives.
func offerTrace(trace func(string), line string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug(fmt.Sprintf("%s - diagnostic trace panicked: %v", errorsLogPrefix, r))
		}
	}()
	trace(line)
}

func diagnosticLine(category string, err error, withStack bool) string {
	line := category + " was thrown."
	var st stackTracer
	if errors.As(err, &st) {
		return line + " " + st.StackTrace()
	}
	if withStack {
		return line + " " + string(debug.Stack())
	}
	return line
}
