package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// Entry is one captured log record with its attributes flattened.
type Entry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// LogCapture is a slog.Handler that keeps every record in memory and echoes
// it to the test log. Handlers derived via With share the same entries.
type LogCapture struct {
	t      *testing.T
	shared *captured
	attrs  []slog.Attr
}

type captured struct {
	mu      sync.Mutex
	entries []Entry
}

// NewTestLogger returns a logger writing into a fresh LogCapture.
func NewTestLogger(t *testing.T) (*slog.Logger, *LogCapture) {
	c := &LogCapture{t: t, shared: &captured{}}
	return slog.New(c), c
}

func (c *LogCapture) Enabled(context.Context, slog.Level) bool { return true }

func (c *LogCapture) Handle(_ context.Context, r slog.Record) error {
	e := Entry{Level: r.Level, Message: r.Message, Attrs: make(map[string]any, len(c.attrs)+r.NumAttrs())}
	for _, a := range c.attrs {
		e.Attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		e.Attrs[a.Key] = a.Value.Any()
		return true
	})

	c.shared.mu.Lock()
	c.shared.entries = append(c.shared.entries, e)
	c.shared.mu.Unlock()

	if c.t != nil {
		c.t.Logf("[%s] %s %v", e.Level, e.Message, e.Attrs)
	}
	return nil
}

func (c *LogCapture) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogCapture{t: c.t, shared: c.shared, attrs: append(append([]slog.Attr{}, c.attrs...), attrs...)}
}

// WithGroup flattens groups; assertions look attributes up by bare key.
func (c *LogCapture) WithGroup(string) slog.Handler { return c }

// Entries returns a snapshot, optionally restricted to the given levels.
func (c *LogCapture) Entries(levels ...slog.Level) []Entry {
	c.shared.mu.Lock()
	defer c.shared.mu.Unlock()

	var out []Entry
	for _, e := range c.shared.entries {
		if len(levels) == 0 || containsLevel(levels, e.Level) {
			out = append(out, e)
		}
	}
	return out
}

func containsLevel(levels []slog.Level, l slog.Level) bool {
	for _, lv := range levels {
		if lv == l {
			return true
		}
	}
	return false
}

// Count is the number of captured entries.
func (c *LogCapture) Count() int { return len(c.Entries()) }

// HasMessage reports whether any entry's message contains substr.
func (c *LogCapture) HasMessage(substr string) bool {
	for _, e := range c.Entries() {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// HasAttr reports whether any entry carries key with exactly value.
func (c *LogCapture) HasAttr(key string, value any) bool {
	for _, e := range c.Entries() {
		if v, ok := e.Attrs[key]; ok && v == value {
			return true
		}
	}
	return false
}

// Reset discards captured entries.
func (c *LogCapture) Reset() {
	c.shared.mu.Lock()
	c.shared.entries = nil
	c.shared.mu.Unlock()
}

// AssertLogContains fails t unless an entry at level contains message.
func AssertLogContains(t *testing.T, logs *LogCapture, level slog.Level, message string) {
	t.Helper()

	entries := logs.Entries(level)
	for _, e := range entries {
		if strings.Contains(e.Message, message) {
			return
		}
	}
	t.Errorf("no %s log containing %q", level, message)
	for _, e := range entries {
		t.Logf("  - %s", e.Message)
	}
}

// AssertNoErrors fails t for every captured error-level entry.
func AssertNoErrors(t *testing.T, logs *LogCapture) {
	t.Helper()
	for _, e := range logs.Entries(slog.LevelError) {
		t.Errorf("unexpected error log: %s %v", e.Message, e.Attrs)
	}
}
