package plugin

import (
	"sort"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// TargetKey is the input parameter holding the record affected by the event.
const TargetKey = "Target"

// Entity is a full record payload, sent with Create and Update.
type Entity struct {
	LogicalName string                 `json:"logicalName"`
	ID          uuid.UUID              `json:"id"`
	Attributes  map[string]interface{} `json:"attributes,omitempty"`
}

// Attribute returns the named attribute value.
func (e *Entity) Attribute(name string) (interface{}, bool) {
	if e == nil {
		return nil, false
	}
	v, ok := e.Attributes[name]
	return v, ok
}

// AttributeNames returns the attribute names in sorted order.
func (e *Entity) AttributeNames() []string {
	if e == nil {
		return nil
	}
	names := lo.Keys(e.Attributes)
	sort.Strings(names)
	return names
}

// ToReference returns a reference to the same record.
func (e *Entity) ToReference() *EntityReference {
	return &EntityReference{LogicalName: e.LogicalName, ID: e.ID}
}

// EntityReference identifies a record without carrying its data. Delete,
// Associate and Disassociate send one.
type EntityReference struct {
	LogicalName string    `json:"logicalName"`
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name,omitempty"`
}

// Extract looks up key in the invocation's input parameters and narrows it to
// T. A missing key or a value of another type yields the zero value and false;
// neither is an error.
func Extract[T any](pc *Context, key string) (T, bool) {
	var zero T
	if pc == nil || pc.inv == nil {
		return zero, false
	}
	raw, ok := pc.InputParameters()[key]
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return v, true
}
