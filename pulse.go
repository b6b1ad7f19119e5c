package pulse

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/pulse/internal"
	"github.com/dmitrymomot/pulse/pkg/correlation"
	"github.com/dmitrymomot/pulse/pkg/logger"
	"github.com/dmitrymomot/pulse/pkg/telemetry"
	"github.com/dmitrymomot/pulse/pkg/work"
)

// Type aliases - public API
type (
	// Supervisor runs the work loop and the heartbeat and stops them in
	// order.
	Supervisor = internal.Supervisor

	// Orchestrator is the work loop on its own, without a heartbeat.
	Orchestrator = internal.Orchestrator

	// Heartbeat is the liveness ticker on its own.
	Heartbeat = internal.Heartbeat

	// Option configures the supervisor.
	Option = internal.Option

	// State is the work loop lifecycle state.
	State = internal.State

	// Unit is one cycle of work. A nil error is success.
	Unit = work.Unit

	// UnitFunc adapts a function to Unit.
	UnitFunc = work.UnitFunc

	// Sink receives events, counters and exceptions.
	Sink = telemetry.Sink

	// ContextExtractor extracts a slog attribute from context.
	ContextExtractor = logger.ContextExtractor
)

// Work loop states.
const (
	StateIdle     = internal.StateIdle
	StateRunning  = internal.StateRunning
	StateSleeping = internal.StateSleeping
	StateStopped  = internal.StateStopped
)

// Constructors

// New creates a supervisor that runs unit on a fixed cadence and reports
// into sink.
//
// Example:
//
//	sup, err := pulse.New(
//	    work.Sequence(
//	        work.HTTPCall("ping", "https://api.example.com/ping"),
//	        work.Compute("calculate", calculate),
//	    ),
//	    telemetry.Multi(telemetry.NewLogSink(log), promSink),
//	    pulse.WithServiceName("WorkerServiceDemo"),
//	    pulse.WithMetricPrefix("WorkerService"),
//	    pulse.WithHeartbeatInterval(10*time.Second),
//	)
//	if err != nil {
//	    return err
//	}
//	return sup.Run(ctx)
func New(unit Unit, sink Sink, opts ...Option) (*Supervisor, error) {
	return internal.New(unit, sink, opts...)
}

// NewOrchestrator creates a standalone work loop. Call Run to start it.
func NewOrchestrator(unit Unit, sink Sink, opts ...Option) *Orchestrator {
	return internal.NewOrchestrator(unit, sink, opts...)
}

// NewHeartbeat creates a standalone heartbeat. Call Start to start it.
func NewHeartbeat(sink Sink, opts ...Option) *Heartbeat {
	return internal.NewHeartbeat(sink, opts...)
}

// Options

// WithLogger creates a logger with a component name. Correlation IDs are
// always extracted; extra extractors add more context values.
//
// Example:
//
//	pulse.New(unit, sink,
//	    pulse.WithLogger("billing-worker"),
//	)
func WithLogger(component string, extractors ...ContextExtractor) Option {
	all := append([]ContextExtractor{correlation.Extractor()}, extractors...)
	return internal.WithLogger(logger.New(logger.Config{Component: component}, all...))
}

// WithCustomLogger sets a fully custom logger.
func WithCustomLogger(l *slog.Logger) Option {
	return internal.WithLogger(l)
}

// WithServiceName sets the ServiceName property. Default: "pulse".
func WithServiceName(name string) Option {
	return internal.WithServiceName(name)
}

// WithMetricPrefix sets the prefix for event and counter names.
// Defaults to the service name.
func WithMetricPrefix(prefix string) Option {
	return internal.WithMetricPrefix(prefix)
}

// WithEnvironment sets the Environment property. Default: "production".
func WithEnvironment(env string) Option {
	return internal.WithEnvironment(env)
}

// WithCycleInterval sets the sleep between cycles. Default: 1s.
func WithCycleInterval(d time.Duration) Option {
	return internal.WithCycleInterval(d)
}

// WithCycleTimeout bounds each cycle. Default: no bound.
func WithCycleTimeout(d time.Duration) Option {
	return internal.WithCycleTimeout(d)
}

// WithHeartbeatInterval sets the heartbeat period. Default: 10s.
func WithHeartbeatInterval(d time.Duration) Option {
	return internal.WithHeartbeatInterval(d)
}

// WithHeartbeatServices sets the services that get a heartbeat counter.
// Defaults to the service name.
func WithHeartbeatServices(names ...string) Option {
	return internal.WithHeartbeatServices(names...)
}

// WithShutdownTimeout bounds shutdown in Supervisor.Run. Default: 30s.
func WithShutdownTimeout(d time.Duration) Option {
	return internal.WithShutdownTimeout(d)
}

// WithMaxInflightTicks limits heartbeat emissions waiting on a slow sink.
// Default: 16.
func WithMaxInflightTicks(n int) Option {
	return internal.WithMaxInflightTicks(n)
}

// WithFailureEvent toggles the ExecutionFailure event. Default: enabled.
func WithFailureEvent(enabled bool) Option {
	return internal.WithFailureEvent(enabled)
}

// HeartbeatCounter returns the counter name used for service's heartbeat.
func HeartbeatCounter(service string) string {
	return internal.HeartbeatCounter(service)
}

// Supervisor errors for checking return values.
var (
	ErrUnitRequired     = internal.ErrUnitRequired
	ErrSinkRequired     = internal.ErrSinkRequired
	ErrAlreadyStarted   = internal.ErrAlreadyStarted
	ErrStopped          = internal.ErrStopped
	ErrInvalidInterval  = internal.ErrInvalidInterval
	ErrShutdownTimeout  = internal.ErrShutdownTimeout
	ErrNotRunning       = internal.ErrNotRunning
	ErrHeartbeatSkipped = internal.ErrHeartbeatSkipped
)
