package internal

import "errors"

// Supervisor errors.
var (
	// ErrUnitRequired is returned by New when no work unit is given.
	ErrUnitRequired = errors.New("pulse: work unit is required")

	// ErrSinkRequired is returned by New when no telemetry sink is given.
	ErrSinkRequired = errors.New("pulse: telemetry sink is required")

	// ErrAlreadyStarted is returned when starting a running component.
	ErrAlreadyStarted = errors.New("pulse: already started")

	// ErrStopped is returned when starting a component that was stopped.
	// Stopped is terminal.
	ErrStopped = errors.New("pulse: stopped")

	// ErrInvalidInterval is returned for non-positive intervals.
	ErrInvalidInterval = errors.New("pulse: interval must be positive")

	// ErrShutdownTimeout is returned when a component does not quiesce
	// before the stop context expires.
	ErrShutdownTimeout = errors.New("pulse: shutdown timeout")

	// ErrHeartbeatSkipped is reported by the health check when heartbeat
	// ticks were dropped because the sink could not keep up.
	ErrHeartbeatSkipped = errors.New("pulse: heartbeat ticks skipped")

	// ErrNotRunning is reported by the health check while the supervisor is
	// not running.
	ErrNotRunning = errors.New("pulse: supervisor not running")
)
