// Package guard is the record guard plugin shipped with the host binary. It
// traces record changes and refuses deletion of protected entities.
package guard

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/lo"

	"github.com/morezero/record-plugins/pkg/plugin"
)

// OverrideTokenKey is the input parameter carrying a deletion override token.
const OverrideTokenKey = "OverrideToken"

// New builds the guard plugin. The unsecure configuration is a comma-separated
// list of protected entity logical names; the secure configuration, when set,
// is a token that lets a Delete through.
func New(cfg plugin.Configuration, opts ...plugin.Option) *plugin.TypedPlugin[*plugin.Entity] {
	g := &guard{
		protected: ParseProtected(cfg.Unsecure()),
		override:  cfg.Secure(),
	}
	return plugin.NewTyped[*plugin.Entity](cfg, plugin.Handlers{
		OnCreate:        g.onChange,
		OnUpdate:        g.onChange,
		OnDelete:        g.onDelete,
		OnAssociate:     g.onRelationship,
		OnDisassociate:  g.onRelationship,
		OnCustomMessage: g.onCustom,
	}, g.preExecute, opts...)
}

// ParseProtected splits a comma-separated entity list, lowercased and de-duplicated.
func ParseProtected(list string) map[string]struct{} {
	names := lo.Uniq(lo.FilterMap(strings.Split(list, ","), func(s string, _ int) (string, bool) {
		s = strings.ToLower(strings.TrimSpace(s))
		return s, s != ""
	}))
	return lo.SliceToMap(names, func(n string) (string, struct{}) { return n, struct{}{} })
}

type guard struct {
	protected map[string]struct{}
	override  string
}

func (g *guard) isProtected(logicalName string) bool {
	_, ok := g.protected[strings.ToLower(logicalName)]
	return ok
}

// emptyTarget is returned when the host sends a Target with no record behind it.
func emptyTarget(pc *plugin.Context) error {
	return &plugin.APIError{
		Code:    http.StatusBadRequest,
		Message: fmt.Sprintf("%s target is empty", pc.MessageName()),
	}
}

func (g *guard) preExecute(_ context.Context, pc *plugin.Context, e *plugin.Entity) error {
	if e == nil {
		return emptyTarget(pc)
	}
	pc.Debugf("target %s %s", e.LogicalName, e.ID)
	return nil
}

func (g *guard) onChange(_ context.Context, pc *plugin.Context, e *plugin.Entity) error {
	if e == nil {
		return emptyTarget(pc)
	}
	names := e.AttributeNames()
	if len(names) == 0 {
		pc.Trace("%s %s %s with no attributes", pc.MessageName(), e.LogicalName, e.ID)
		return nil
	}
	pc.Trace("%s %s %s: %s", pc.MessageName(), e.LogicalName, e.ID, strings.Join(names, ", "))
	return nil
}

func (g *guard) onDelete(_ context.Context, pc *plugin.Context, ref *plugin.EntityReference) error {
	if ref == nil {
		return emptyTarget(pc)
	}
	if !g.isProtected(ref.LogicalName) {
		pc.Trace("Delete %s %s allowed", ref.LogicalName, ref.ID)
		return nil
	}
	if token, ok := plugin.Extract[string](pc, OverrideTokenKey); ok && g.override != "" && token == g.override {
		pc.Trace("Delete %s %s allowed by override", ref.LogicalName, ref.ID)
		return nil
	}
	return &plugin.APIError{
		Code:    http.StatusForbidden,
		Message: fmt.Sprintf("%s records are protected and cannot be deleted", ref.LogicalName),
	}
}

func (g *guard) onRelationship(_ context.Context, pc *plugin.Context, ref *plugin.EntityReference) error {
	if ref == nil {
		return emptyTarget(pc)
	}
	label := ref.Name
	if label == "" {
		label = ref.ID.String()
	}
	pc.Trace("%s %s %s", pc.MessageName(), ref.LogicalName, label)
	return nil
}

func (g *guard) onCustom(_ context.Context, pc *plugin.Context) error {
	pc.Trace("custom message %s with %d parameters", pc.MessageName(), len(pc.InputParameters()))
	return nil
}
