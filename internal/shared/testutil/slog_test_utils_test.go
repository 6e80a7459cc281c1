package testutil

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogCapture(t *testing.T) {
	t.Run("captures entries", func(t *testing.T) {
		logger, logs := NewTestLogger(t)

		logger.Info("route bound", slog.String("path", "/api/rooms"))
		logger.Error("bind failed", slog.Int("code", 500))

		assert.Equal(t, 2, logs.Count())
		assert.True(t, logs.HasMessage("route bound"))
		assert.True(t, logs.HasAttr("path", "/api/rooms"))
		assert.False(t, logs.HasAttr("path", "/other"))
	})

	t.Run("filters by level", func(t *testing.T) {
		logger, logs := NewTestLogger(t)

		logger.Debug("debug msg")
		logger.Info("info msg")
		logger.Warn("warn msg")
		logger.Error("error msg")

		assert.Len(t, logs.Entries(slog.LevelInfo), 1)
		assert.Len(t, logs.Entries(slog.LevelWarn, slog.LevelError), 2)
		assert.Len(t, logs.Entries(), 4)
	})

	t.Run("derived loggers share entries and keep attrs", func(t *testing.T) {
		logger, logs := NewTestLogger(t)

		logger.With("component", "routing").WithGroup("req").Info("dispatch", "method", "GET")

		assert.Equal(t, 1, logs.Count())
		assert.True(t, logs.HasAttr("component", "routing"))
		assert.True(t, logs.HasAttr("method", "GET"))
	})

	t.Run("reset", func(t *testing.T) {
		logger, logs := NewTestLogger(t)
		logger.Info("one")
		logs.Reset()
		assert.Zero(t, logs.Count())
		AssertNoErrors(t, logs)
	})
}
