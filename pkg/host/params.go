package host

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/morezero/record-plugins/pkg/plugin"
)

const paramsLogPrefix = "host:params"

// decodeParameters turns wire parameters into the values plugins extract:
// *plugin.Entity, *plugin.EntityReference, string, float64, bool or generic JSON.
func decodeParameters(in map[string]Parameter) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(in))
	for name, p := range in {
		v, err := decodeParameter(p)
		if err != nil {
			return nil, fmt.Errorf("%s - parameter %q: %w", paramsLogPrefix, name, err)
		}
		out[name] = v
	}
	return out, nil
}

func decodeParameter(p Parameter) (interface{}, error) {
	if len(bytes.TrimSpace(p.Value)) == 0 || bytes.Equal(bytes.TrimSpace(p.Value), []byte("null")) {
		return nil, nil
	}

	switch p.Type {
	case ParamEntity:
		var e plugin.Entity
		if err := json.Unmarshal(p.Value, &e); err != nil {
			return nil, err
		}
		if e.LogicalName == "" {
			return nil, fmt.Errorf("entity without logicalName")
		}
		return &e, nil
	case ParamEntityReference:
		var r plugin.EntityReference
		if err := json.Unmarshal(p.Value, &r); err != nil {
			return nil, err
		}
		if r.LogicalName == "" {
			return nil, fmt.Errorf("entity reference without logicalName")
		}
		return &r, nil
	case ParamString:
		var s string
		err := json.Unmarshal(p.Value, &s)
		return s, err
	case ParamNumber:
		var f float64
		err := json.Unmarshal(p.Value, &f)
		return f, err
	case ParamBool:
		var b bool
		err := json.Unmarshal(p.Value, &b)
		return b, err
	case ParamJSON, "":
		var v interface{}
		err := json.Unmarshal(p.Value, &v)
		return v, err
	default:
		return nil, fmt.Errorf("unknown parameter type %q", p.Type)
	}
}
