// Package logger builds the structured slog loggers used by the supervisor.
//
// Loggers write JSON (or text) records to stdout and can additionally forward
// warnings and errors to Sentry through a caller-provided hub. Context
// extractors pull per-cycle values, such as the correlation identifier, out of
// the context on every log call:
//
//	log := logger.New(logger.Config{Component: "supervisor"}, correlation.Extractor())
//	log.InfoContext(ctx, "cycle completed")
//	// {"level":"INFO","msg":"cycle completed","component":"supervisor","correlation_id":"0192..."}
//
// With Sentry:
//
//	hub, _ := telemetry.NewSentryHub(telemetry.SentryConfig{DSN: dsn, Environment: "production"})
//	log := logger.NewWithSentry(logger.Config{}, hub, correlation.Extractor())
//
// A nil hub, or a hub without a client, falls back to stdout only so the same
// wiring works in development.
package logger
