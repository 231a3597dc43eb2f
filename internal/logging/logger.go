// Package logging provides the structured logger used across the storefront.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Fields carries structured key/value pairs attached to a log entry.
type Fields map[string]interface{}

var (
	level   = new(slog.LevelVar)
	handler atomic.Value
)

func init() {
	handler.Store(slog.Handler(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

// SetLevel sets the minimum level for every logger. Unknown names fall back to info.
func SetLevel(name string) {
	switch strings.ToLower(name) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

// SetHandler replaces the output handler. Loggers created afterwards use it.
func SetHandler(h slog.Handler) {
	handler.Store(h)
}

// LoggerV2 is a component-scoped structured logger.
type LoggerV2 struct {
	base *slog.Logger
}

// NewLoggerV2 creates a logger tagged with the given component name.
func NewLoggerV2(component string) *LoggerV2 {
	h := handler.Load().(slog.Handler)
	return &LoggerV2{base: slog.New(h).With("component", component)}
}

// With returns a child logger that always includes the given fields.
func (l *LoggerV2) With(fields Fields) *LoggerV2 {
	return &LoggerV2{base: l.base.With(attrs(fields)...)}
}

func (l *LoggerV2) Debug(msg string, fields ...Fields) {
	l.base.Debug(msg, attrs(fields...)...)
}

func (l *LoggerV2) Info(msg string, fields ...Fields) {
	l.base.Info(msg, attrs(fields...)...)
}

func (l *LoggerV2) Warn(msg string, fields ...Fields) {
	l.base.Warn(msg, attrs(fields...)...)
}

func (l *LoggerV2) Error(msg string, fields ...Fields) {
	l.base.Error(msg, attrs(fields...)...)
}

// Fatal logs at error level and exits the process.
func (l *LoggerV2) Fatal(msg string, fields ...Fields) {
	l.base.Error(msg, attrs(fields...)...)
	os.Exit(1)
}

func attrs(fields ...Fields) []any {
	n := 0
	for _, f := range fields {
		n += len(f)
	}
	out := make([]any, 0, n*2)
	for _, f := range fields {
		for k, v := range f {
			out = append(out, slog.Any(k, v))
		}
	}
	return out
}
