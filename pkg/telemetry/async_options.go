package telemetry

import "log/slog"

type asyncConfig struct {
	logger *slog.Logger
	buffer int
}

// AsyncOption configures an Async sink.
type AsyncOption func(*asyncConfig)

// WithBufferSize sets how many artifacts may wait for delivery.
// Default: 1024.
func WithBufferSize(n int) AsyncOption {
	return func(c *asyncConfig) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// WithAsyncLogger sets the logger used for drop and panic warnings.
func WithAsyncLogger(l *slog.Logger) AsyncOption {
	return func(c *asyncConfig) {
		if l != nil {
			c.logger = l
		}
	}
}
