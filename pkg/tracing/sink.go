// Package tracing provides trace sinks a host hands to plugins: an in-memory
// buffer, a slog-backed sink and a fan-out.
package tracing

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/morezero/record-plugins/pkg/plugin"
)

const logPrefix = "tracing:sink"

// MaxLineLength caps a single trace line in bytes. Longer lines are cut on
// the last rune boundary at or before it.
const MaxLineLength = 10 * 1024

// FormatLine formats a trace line and truncates it to MaxLineLength.
func FormatLine(format string, args ...interface{}) string {
	return truncate(fmt.Sprintf(format, args...))
}

// truncate cuts line to at most MaxLineLength bytes on a rune boundary.
func truncate(line string) string {
	if len(line) <= MaxLineLength {
		return line
	}
	cut := MaxLineLength
	for cut > 0 && !utf8.RuneStart(line[cut]) {
		cut--
	}
	return line[:cut]
}

// Buffer collects trace lines in memory. It is safe for concurrent use.
type Buffer struct {
	mu    sync.Mutex
	lines []string
}

// NewBuffer creates an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Trace appends line.
func (b *Buffer) Trace(line string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, truncate(line))
	return nil
}

// Lines returns a copy of the collected lines.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// SlogSink writes trace lines to the default slog logger at debug level.
type SlogSink struct {
	// Prefix is prepended to each line, e.g. the plugin name and correlation id.
	Prefix string
}

// Trace logs line.
func (s SlogSink) Trace(line string) error {
	if s.Prefix == "" {
		slog.Debug(fmt.Sprintf("%s - %s", logPrefix, line))
		return nil
	}
	slog.Debug(fmt.Sprintf("%s - [%s] %s", logPrefix, s.Prefix, line))
	return nil
}

// Discard drops every line.
var Discard plugin.TraceSink = plugin.TraceSinkFunc(func(string) error { return nil })

type multiSink []plugin.TraceSink

// Multi returns a sink that writes to every non-nil sink. All sinks are tried;
// their errors are joined.
func Multi(sinks ...plugin.TraceSink) plugin.TraceSink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multiSink) Trace(line string) error {
	var errs []error
	for _, s := range m {
		if err := s.Trace(line); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
