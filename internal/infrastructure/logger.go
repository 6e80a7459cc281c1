package infrastructure

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"routekit/internal/config"
)

// logState is the process-wide logger plus the file it may own.
var logState struct {
	once   sync.Once
	logger *slog.Logger

	mu   sync.Mutex
	file *os.File
}

// InitializeLogger builds the global logger from cfg on first call and makes
// it the slog default. Later calls return the same logger.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var err error
	logState.once.Do(func() {
		logState.logger, err = NewLogger(cfg)
		if logState.logger != nil {
			slog.SetDefault(logState.logger)
		}
	})
	return logState.logger, err
}

// GetLogger returns the global logger, or slog.Default before initialization.
func GetLogger() *slog.Logger {
	if logState.logger == nil {
		return slog.Default()
	}
	return logState.logger
}

// NewLogger builds a logger from cfg. Output "file" and "both" open
// cfg.FilePath, which CloseLogFile releases.
func NewLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{
		AddSource: strings.EqualFold(cfg.Level, "debug"),
		Level:     parseLogLevel(cfg.Level),
	}

	output := strings.ToLower(cfg.Output)
	if output != "file" && output != "both" {
		return NewLoggerWithWriter(os.Stdout, cfg.Format, opts), nil
	}

	file, err := openLogFile(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	swapLogFile(file)

	var w io.Writer = file
	if output == "both" {
		w = io.MultiWriter(os.Stdout, file)
	}
	return NewLoggerWithWriter(w, cfg.Format, opts), nil
}

// NewLoggerWithWriter returns a trace-aware JSON logger, or a text one when
// format is "text".
func NewLoggerWithWriter(w io.Writer, format string, opts *slog.HandlerOptions) *slog.Logger {
	var handler slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(&traceHandler{Handler: handler})
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// CloseLogFile closes the log file opened by NewLogger, if any.
func CloseLogFile() error {
	return swapLogFile(nil)
}

// ResetLoggerForTesting drops the global logger so InitializeLogger runs again.
func ResetLoggerForTesting() {
	CloseLogFile()
	logState.logger = nil
	logState.once = sync.Once{}
}

// swapLogFile installs f as the owned log file and closes the previous one.
func swapLogFile(f *os.File) error {
	logState.mu.Lock()
	defer logState.mu.Unlock()

	prev := logState.file
	logState.file = f
	if prev == nil {
		return nil
	}
	return prev.Close()
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}
