// Package plugin is the base for record lifecycle plugins. A host invokes a
// plugin once per tracked event (Create, Update, Delete, Associate,
// Disassociate or a custom message); the plugin routes the call to the matching
// callback and turns any failure into a single *Error.
package plugin

import (
	"context"
	"errors"
	"runtime/debug"
)

// EntityHandler handles Create and Update.
type EntityHandler func(ctx context.Context, pc *Context, target *Entity) error

// ReferenceHandler handles Delete, Associate and Disassociate.
type ReferenceHandler func(ctx context.Context, pc *Context, target *EntityReference) error

// MessageHandler handles a message with no typed target.
type MessageHandler func(ctx context.Context, pc *Context) error

// Handlers is the callback table. A nil entry does nothing.
type Handlers struct {
	// PreExecute runs before routing. Plugins built with NewTyped use their
	// typed pre-hook instead and ignore this field.
	PreExecute MessageHandler

	OnCreate        EntityHandler
	OnUpdate        EntityHandler
	OnDelete        ReferenceHandler
	OnAssociate     ReferenceHandler
	OnDisassociate  ReferenceHandler
	OnCustomMessage MessageHandler
}

// Invoker is the entry point a host calls.
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) error
}

type options struct {
	verbose     bool
	stackTraces bool
}

// Option configures a plugin.
type Option func(*options)

// WithVerboseTrace enables routing trace lines (Context.Debugf).
func WithVerboseTrace(verbose bool) Option {
	return func(o *options) {
		o.verbose = verbose
	}
}

// WithStackTraces controls whether failure trace lines include a stack trace
// when the failure does not carry its own. Enabled by default.
func WithStackTraces(enabled bool) Option {
	return func(o *options) {
		o.stackTraces = enabled
	}
}

var errNilInvocation = errors.New("plugin: nil invocation")

// dispatcher holds what both plugin variants share. It is read-only after
// construction, so one instance serves concurrent invocations.
type dispatcher struct {
	config   Configuration
	handlers Handlers
	opts     options
}

func newDispatcher(cfg Configuration, h Handlers, opts []Option) dispatcher {
	o := options{stackTraces: true}
	for _, opt := range opts {
		opt(&o)
	}
	return dispatcher{config: cfg, handlers: h, opts: o}
}

func (d *dispatcher) invoke(ctx context.Context, inv Invocation, pre MessageHandler) error {
	if inv == nil {
		return translate(errNilInvocation, nil, false)
	}
	pc := newContext(inv, d.config, d.opts.verbose)

	err := safeExecute(func() error {
		if pre != nil {
			if err := pre(ctx, pc); err != nil {
				return err
			}
		}
		return d.route(ctx, pc)
	})
	if err == nil {
		return nil
	}
	return translate(err, pc.trace, d.opts.stackTraces)
}

func (d *dispatcher) route(ctx context.Context, pc *Context) error {
	h := d.handlers
	kind := ParseMessageKind(pc.MessageName())
	pc.Debugf("routing %q as %s", pc.MessageName(), kind)

	switch kind {
	case MessageCreate:
		return dispatchTarget[*Entity](ctx, pc, h.OnCreate)
	case MessageUpdate:
		return dispatchTarget[*Entity](ctx, pc, h.OnUpdate)
	case MessageDelete:
		return dispatchTarget[*EntityReference](ctx, pc, h.OnDelete)
	case MessageAssociate:
		return dispatchTarget[*EntityReference](ctx, pc, h.OnAssociate)
	case MessageDisassociate:
		return dispatchTarget[*EntityReference](ctx, pc, h.OnDisassociate)
	default:
		if h.OnCustomMessage == nil {
			return nil
		}
		return h.OnCustomMessage(ctx, pc)
	}
}

// dispatchTarget extracts the Target as T and calls fn with it. A missing or
// mismatched Target skips fn without error.
func dispatchTarget[T any](ctx context.Context, pc *Context, fn func(context.Context, *Context, T) error) error {
	if fn == nil {
		return nil
	}
	target, ok := Extract[T](pc, TargetKey)
	if !ok {
		pc.Debugf("%s: no %T under %q, callback skipped", pc.MessageName(), target, TargetKey)
		return nil
	}
	return fn(ctx, pc, target)
}

// safeExecute runs fn, turning a panic into an error.
func safeExecute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: string(debug.Stack())}
		}
	}()
	return fn()
}

// Plugin routes invocations with an untyped pre-hook.
type Plugin struct {
	d dispatcher
}

// New creates a Plugin. cfg is fixed for the plugin's lifetime.
func New(cfg Configuration, h Handlers, opts ...Option) *Plugin {
	return &Plugin{d: newDispatcher(cfg, h, opts)}
}

// Config returns the plugin configuration.
func (p *Plugin) Config() Configuration {
	return p.d.config
}

// Invoke handles one host invocation. It returns nil or an *Error.
func (p *Plugin) Invoke(ctx context.Context, inv Invocation) error {
	return p.d.invoke(ctx, inv, p.d.handlers.PreExecute)
}

// TypedPlugin routes invocations like Plugin, but its pre-hook receives the
// Target narrowed to T and runs only when that narrowing succeeds.
type TypedPlugin[T any] struct {
	d   dispatcher
	pre func(ctx context.Context, pc *Context, target T) error
}

// NewTyped creates a TypedPlugin. pre may be nil.
func NewTyped[T any](cfg Configuration, h Handlers, pre func(ctx context.Context, pc *Context, target T) error, opts ...Option) *TypedPlugin[T] {
	return &TypedPlugin[T]{d: newDispatcher(cfg, h, opts), pre: pre}
}

// Config returns the plugin configuration.
func (p *TypedPlugin[T]) Config() Configuration {
	return p.d.config
}

// Invoke handles one host invocation. It returns nil or an *Error.
func (p *TypedPlugin[T]) Invoke(ctx context.Context, inv Invocation) error {
	return p.d.invoke(ctx, inv, func(ctx context.Context, pc *Context) error {
		if p.pre == nil {
			return nil
		}
		return dispatchTarget[T](ctx, pc, p.pre)
	})
}
