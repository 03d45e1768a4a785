// Package host exposes a plugin over COMMS request/reply: it decodes
// invocation envelopes, runs the plugin and answers with its outcome and trace.
package host

import (
	"encoding/json"

	"github.com/morezero/record-plugins/pkg/plugin"
)

// Parameter types accepted in InvocationRequest.InputParameters.
const (
	ParamEntity          = "entity"
	ParamEntityReference = "entityReference"
	ParamString          = "string"
	ParamNumber          = "number"
	ParamBool            = "bool"
	ParamJSON            = "json"
)

// MaxDepth is the deepest nested invocation a host accepts.
const MaxDepth = 8

// Error codes in ErrorDetail.Code.
const (
	CodeInvalidRequest         = "INVALID_REQUEST"
	CodeInvalidArgument        = "INVALID_ARGUMENT"
	CodeHostVersionUnsupported = "HOST_VERSION_UNSUPPORTED"
	CodeDepthExceeded          = "DEPTH_EXCEEDED"
	CodePluginError            = "PLUGIN_ERROR"
	CodeInternalError          = "INTERNAL_ERROR"
)

// InvocationRequest is the JSON envelope for an incoming plugin invocation.
type InvocationRequest struct {
	ID                string               `json:"id"`
	MessageName       string               `json:"messageName"`
	PrimaryEntityName string               `json:"primaryEntityName,omitempty"`
	HostVersion       string               `json:"hostVersion,omitempty"`
	Depth             int                  `json:"depth,omitempty"`
	InputParameters   map[string]Parameter `json:"inputParameters,omitempty"`
	Ctx               *CallerContext       `json:"ctx,omitempty"`
}

// Parameter is one typed input parameter. An empty Type is treated as json.
type Parameter struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// CallerContext holds context from the caller.
type CallerContext struct {
	UserID         string `json:"userId,omitempty"`
	OrganizationID string `json:"organizationId,omitempty"`
	CorrelationID  string `json:"correlationId,omitempty"`
	DeadlineMs     int    `json:"deadlineMs,omitempty"`
	TimeoutMs      int    `json:"timeoutMs,omitempty"`
}

// InvocationResponse is the JSON envelope answered for every request.
type InvocationResponse struct {
	ID      string       `json:"id"`
	Ok      bool         `json:"ok"`
	Skipped bool         `json:"skipped,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
	Trace   []string     `json:"trace,omitempty"`
}

// ErrorDetail holds structured error information.
type ErrorDetail struct {
	Code       string        `json:"code"`
	Message    string        `json:"message"`
	StatusCode *int          `json:"statusCode,omitempty"`
	Fault      *plugin.Fault `json:"fault,omitempty"`
	Cause      string        `json:"cause,omitempty"`
	Retryable  bool          `json:"retryable"`
}

// EntityParam builds an entity parameter.
func EntityParam(e *plugin.Entity) (Parameter, error) {
	return jsonParam(ParamEntity, e)
}

// ReferenceParam builds an entity reference parameter.
func ReferenceParam(r *plugin.EntityReference) (Parameter, error) {
	return jsonParam(ParamEntityReference, r)
}

// ValueParam builds a string, number, bool or json parameter from v.
func ValueParam(v interface{}) (Parameter, error) {
	switch v.(type) {
	case string:
		return jsonParam(ParamString, v)
	case bool:
		return jsonParam(ParamBool, v)
	case int, int32, int64, float32, float64:
		return jsonParam(ParamNumber, v)
	default:
		return jsonParam(ParamJSON, v)
	}
}

func jsonParam(typ string, v interface{}) (Parameter, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Parameter{}, err
	}
	return Parameter{Type: typ, Value: data}, nil
}
