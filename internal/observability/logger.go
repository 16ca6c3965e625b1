// Package observability provides logging setup for sentry-six.
package observability

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/m-mizutani/masq"
	slogmulti "github.com/samber/slog-multi"

	"github.com/ChadR23/sentry-six/internal/config"
)

// NewLogger creates a slog.Logger based on the provided configuration.
// The console handler is selected by format (json, text, or tint-colored
// console); when a log file is configured, JSON records are fanned out to
// it as well. GPS coordinates can be redacted from all records.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	return NewLoggerWithWriter(cfg, os.Stderr)
}

// NewLoggerWithWriter creates a logger that writes console output to w.
// Useful for tests.
func NewLoggerWithWriter(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	level := parseLevel(cfg.Level)

	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   cfg.AddSource,
		ReplaceAttr: replaceAttr(cfg),
	}

	var console slog.Handler
	switch cfg.Format {
	case "json":
		console = slog.NewJSONHandler(w, opts)
	case "text":
		console = slog.NewTextHandler(w, opts)
	default:
		console = tint.NewHandler(w, &tint.Options{
			Level:       level,
			AddSource:   cfg.AddSource,
			TimeFormat:  time.Kitchen,
			ReplaceAttr: replaceAttr(cfg),
		})
	}

	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err == nil {
			return slog.New(slogmulti.Fanout(
				console,
				slog.NewJSONHandler(f, opts),
			))
		}
		// Fall through to console-only when the log file cannot be opened.
	}

	return slog.New(console)
}

// replaceAttr builds the attribute rewriter: custom time format plus
// optional GPS redaction so exact vehicle positions never reach logs.
func replaceAttr(cfg config.LoggingConfig) func([]string, slog.Attr) slog.Attr {
	var redact func([]string, slog.Attr) slog.Attr
	if cfg.RedactGPS {
		redact = masq.New(masq.WithFieldName("lat"), masq.WithFieldName("lon"),
			masq.WithFieldName("latitude_deg"), masq.WithFieldName("longitude_deg"))
	}
	return func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.TimeKey && cfg.TimeFormat != "" {
			if t, ok := a.Value.Any().(time.Time); ok {
				a = slog.String(slog.TimeKey, t.Format(cfg.TimeFormat))
			}
		}
		if redact != nil {
			a = redact(groups, a)
		}
		return a
	}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent adds a component name to the logger for identifying the source.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

// SetDefault sets the provided logger as the default slog logger.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}
