package telemetry

import (
	"log/slog"
	"time"
)

type redisConfig struct {
	logger  *slog.Logger
	stream  string
	prefix  string
	maxLen  int64
	timeout time.Duration
}

func defaultRedisConfig() *redisConfig {
	return &redisConfig{
		stream:  "pulse:telemetry",
		prefix:  "pulse:counter:",
		maxLen:  10000,
		timeout: 2 * time.Second,
	}
}

// RedisOption configures a RedisSink.
type RedisOption func(*redisConfig)

// WithStream sets the stream key. Default: "pulse:telemetry".
func WithStream(key string) RedisOption {
	return func(c *redisConfig) {
		if key != "" {
			c.stream = key
		}
	}
}

// WithCounterPrefix sets the key prefix for counters. Default: "pulse:counter:".
func WithCounterPrefix(prefix string) RedisOption {
	return func(c *redisConfig) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithStreamMaxLen caps the stream length (approximate trimming).
// Default: 10000.
func WithStreamMaxLen(n int64) RedisOption {
	return func(c *redisConfig) {
		if n > 0 {
			c.maxLen = n
		}
	}
}

// WithRedisTimeout bounds every Redis call. Default: 2 seconds.
func WithRedisTimeout(d time.Duration) RedisOption {
	return func(c *redisConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRedisLogger sets the logger for delivery failures.
func WithRedisLogger(l *slog.Logger) RedisOption {
	return func(c *redisConfig) {
		if l != nil {
			c.logger = l
		}
	}
}
