package logger

import (
	"context"
	"log/slog"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// NewWithSentry creates a logger that writes to stdout and forwards to Sentry.
// Errors become Sentry issues; warnings and errors are stored as Sentry logs.
// Falls back to stdout only when hub is nil or has no client.
func NewWithSentry(cfg Config, hub *sentry.Hub, extractors ...ContextExtractor) *slog.Logger {
	stdout := baseHandler(cfg)
	if hub == nil || hub.Client() == nil {
		return slog.New(decorate(stdout, cfg, extractors))
	}

	logLevels := []slog.Level{slog.LevelWarn, slog.LevelError}
	if cfg.Level >= slog.LevelError {
		logLevels = []slog.Level{slog.LevelError}
	}

	sentryHandler := sentryslog.Option{
		Hub:        hub,
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   logLevels,
	}.NewSentryHandler(context.Background())

	return slog.New(decorate(fanoutHandler{stdout, sentryHandler}, cfg, extractors))
}
