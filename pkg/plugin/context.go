package plugin

import (
	"fmt"
	"log/slog"
)

const contextLogPrefix = "plugin:context"

// TraceSink receives free-text diagnostic lines for one invocation.
type TraceSink interface {
	Trace(line string) error
}

// TraceSinkFunc adapts a function to TraceSink.
type TraceSinkFunc func(line string) error

// Trace calls f(line).
func (f TraceSinkFunc) Trace(line string) error {
	return f(line)
}

// Invocation is the handle the host passes for a single call.
type Invocation interface {
	MessageName() string
	InputParameters() map[string]interface{}
	TraceSink() TraceSink
}

// Context is the per-invocation view handed to every callback. It is built
// fresh for each call to Invoke and must not be retained after the callback
// returns.
type Context struct {
	inv     Invocation
	config  Configuration
	verbose bool
}

func newContext(inv Invocation, cfg Configuration, verbose bool) *Context {
	return &Context{inv: inv, config: cfg, verbose: verbose}
}

// MessageName returns the name of the lifecycle event being handled.
func (c *Context) MessageName() string {
	return c.inv.MessageName()
}

// InputParameters returns the host's input parameters. Keys are case-sensitive.
func (c *Context) InputParameters() map[string]interface{} {
	return c.inv.InputParameters()
}

// Config returns the configuration the plugin was constructed with.
func (c *Context) Config() Configuration {
	return c.config
}

// Verbose reports whether verbose tracing is enabled for this plugin.
func (c *Context) Verbose() bool {
	return c.verbose
}

// Trace writes a line to the host trace sink. Delivery is best effort: sink
// errors and panics are dropped.
func (c *Context) Trace(format string, args ...interface{}) {
	if len(args) == 0 {
		c.trace(format)
		return
	}
	c.trace(fmt.Sprintf(format, args...))
}

// Debugf is Trace gated on the verbose flag.
func (c *Context) Debugf(format string, args ...interface{}) {
	if !c.verbose {
		return
	}
	c.Trace(format, args...)
}

func (c *Context) trace(line string) {
	if c == nil || c.inv == nil {
		return
	}
	sink := c.inv.TraceSink()
	if sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Debug(fmt.Sprintf("%s - trace sink panicked: %v", contextLogPrefix, r))
		}
	}()
	if err := sink.Trace(line); err != nil {
		slog.Debug(fmt.Sprintf("%s - trace sink failed: %v", contextLogPrefix, err))
	}
}
