package internal

import (
	"log/slog"
	"slices"
	"time"

	"github.com/dmitrymomot/pulse/pkg/logger"
)

const (
	defaultServiceName       = "pulse"
	defaultEnvironment       = "production"
	defaultCycleInterval     = time.Second
	defaultHeartbeatInterval = 10 * time.Second
	defaultShutdownTimeout   = 30 * time.Second
	defaultMaxInflightTicks  = 16
	staleHeartbeatFactor     = 3
)

// config holds supervisor configuration. It is read-only after New.
type config struct {
	logger            *slog.Logger
	serviceName       string
	metricPrefix      string
	environment       string
	heartbeatServices []string
	cycleInterval     time.Duration
	cycleTimeout      time.Duration
	heartbeatInterval time.Duration
	shutdownTimeout   time.Duration
	maxInflightTicks  int
	failureEvent      bool
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		logger:            logger.NewNope(),
		serviceName:       defaultServiceName,
		environment:       defaultEnvironment,
		cycleInterval:     defaultCycleInterval,
		heartbeatInterval: defaultHeartbeatInterval,
		shutdownTimeout:   defaultShutdownTimeout,
		maxInflightTicks:  defaultMaxInflightTicks,
		failureEvent:      true,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.metricPrefix == "" {
		cfg.metricPrefix = cfg.serviceName
	}
	if len(cfg.heartbeatServices) == 0 {
		cfg.heartbeatServices = []string{cfg.serviceName}
	}
	return cfg
}

// Option configures a Supervisor.
type Option func(*config)

// WithLogger sets the logger. Defaults to a noop logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithServiceName sets the ServiceName property on every event.
// Defaults to "pulse".
func WithServiceName(name string) Option {
	return func(c *config) {
		if name != "" {
			c.serviceName = name
		}
	}
}

// WithMetricPrefix sets the prefix for event and counter names, for example
// "WorkerService" gives WorkerServiceExecutionSuccess and
// WorkerServiceSuccessCount. Defaults to the service name.
func WithMetricPrefix(prefix string) Option {
	return func(c *config) {
		if prefix != "" {
			c.metricPrefix = prefix
		}
	}
}

// WithEnvironment sets the environment label attached to cycle telemetry.
// Defaults to "production".
func WithEnvironment(env string) Option {
	return func(c *config) {
		if env != "" {
			c.environment = env
		}
	}
}

// WithCycleInterval sets the fixed sleep between work cycles. Default: 1s.
func WithCycleInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.cycleInterval = d
		}
	}
}

// WithCycleTimeout bounds a single work cycle. Zero (default) means the unit
// runs until it resolves on its own.
func WithCycleTimeout(d time.Duration) Option {
	return func(c *config) {
		if d >= 0 {
			c.cycleTimeout = d
		}
	}
}

// WithHeartbeatInterval sets the heartbeat period. Default: 10s.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.heartbeatInterval = d
		}
	}
}

// WithHeartbeatServices sets the logical service names that get one
// heartbeat counter each per tick, in the given order.
// Defaults to the service name.
func WithHeartbeatServices(names ...string) Option {
	return func(c *config) {
		clean := slices.DeleteFunc(slices.Clone(names), func(s string) bool { return s == "" })
		if len(clean) > 0 {
			c.heartbeatServices = clean
		}
	}
}

// WithShutdownTimeout bounds Stop when called from Run. Default: 30s.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.shutdownTimeout = d
		}
	}
}

// WithMaxInflightTicks limits heartbeat emissions still waiting on a slow
// sink. Ticks beyond the limit are skipped. Default: 16.
func WithMaxInflightTicks(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxInflightTicks = n
		}
	}
}

// WithFailureEvent toggles the <prefix>ExecutionFailure event emitted next to
// the exception record of a failed cycle. Enabled by default.
func WithFailureEvent(enabled bool) Option {
	return func(c *config) {
		c.failureEvent = enabled
	}
}
