package telemetry

import "errors"

// Telemetry errors.
var (
	// ErrSinkClosed is returned by Close on an already closed async sink.
	ErrSinkClosed = errors.New("telemetry: sink closed")

	// ErrCloseTimeout is returned when an async sink could not drain its
	// buffer before the close context expired.
	ErrCloseTimeout = errors.New("telemetry: close timeout")

	// ErrSentryInit is returned when the Sentry client cannot be created.
	ErrSentryInit = errors.New("telemetry: failed to initialize sentry")
)
