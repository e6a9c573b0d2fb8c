// Package diag carries user-facing diagnostics out of graph queries. Queries
// never fail on unknown input; they report through a Context instead.
package diag

import (
	"fmt"
	"io"
	"sync"
)

// Level is the severity of a diagnostic message.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Message is a single diagnostic line.
type Message struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

// Warnf builds a warning-level message.
func Warnf(format string, args ...any) Message {
	return Message{Level: LevelWarning, Text: fmt.Sprintf(format, args...)}
}

// Infof builds an info-level message.
func Infof(format string, args ...any) Message {
	return Message{Level: LevelInfo, Text: fmt.Sprintf(format, args...)}
}

// Context is the sink that queries report to.
type Context interface {
	// Output emits a message to the user.
	Output(msg Message)
	// SetHasWarnings marks the current operation as having completed with warnings.
	SetHasWarnings()
}

// WriterContext writes messages to an io.Writer and remembers them.
// It is safe for concurrent use.
type WriterContext struct {
	mu          sync.Mutex
	w           io.Writer
	messages    []Message
	hasWarnings bool
}

// NewWriterContext returns a Context writing "level: text" lines to w.
// A nil writer only collects messages.
func NewWriterContext(w io.Writer) *WriterContext {
	return &WriterContext{w: w}
}

// Output implements Context.
func (c *WriterContext) Output(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	if c.w != nil {
		fmt.Fprintf(c.w, "%s: %s\n", msg.Level, msg.Text)
	}
}

// SetHasWarnings implements Context.
func (c *WriterContext) SetHasWarnings() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasWarnings = true
}

// HasWarnings reports whether SetHasWarnings was called.
func (c *WriterContext) HasWarnings() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasWarnings
}

// Messages returns a copy of every message output so far.
func (c *WriterContext) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Discard is a Context that drops everything.
var Discard Context = discard{}

type discard struct{}

func (discard) Output(Message) {}
func (discard) SetHasWarnings() {}
