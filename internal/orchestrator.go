package internal

import (
	"context"
	"log/slog"
	"maps"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/pulse/pkg/correlation"
	"github.com/dmitrymomot/pulse/pkg/telemetry"
	"github.com/dmitrymomot/pulse/pkg/work"
)

// State is the orchestrator lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateSleeping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSleeping:
		return "sleeping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Orchestrator runs a work unit on a fixed cadence and reports one outcome
// per cycle. A failed cycle never ends the loop; only cancellation does.
type Orchestrator struct {
	unit         work.Unit
	sink         telemetry.Sink
	logger       *slog.Logger
	names        names
	serviceName  string
	environment  string
	interval     time.Duration
	cycleTimeout time.Duration
	failureEvent bool

	state  atomic.Int32
	cycles atomic.Uint64
}

// NewOrchestrator creates an orchestrator for unit reporting into sink.
func NewOrchestrator(unit work.Unit, sink telemetry.Sink, opts ...Option) *Orchestrator {
	return newOrchestrator(unit, sink, newConfig(opts...))
}

func newOrchestrator(unit work.Unit, sink telemetry.Sink, cfg *config) *Orchestrator {
	return &Orchestrator{
		unit:         unit,
		sink:         sink,
		logger:       cfg.logger.With(slog.String("activity", "orchestrator")),
		names:        newNames(cfg.metricPrefix),
		serviceName:  cfg.serviceName,
		environment:  cfg.environment,
		interval:     cfg.cycleInterval,
		cycleTimeout: cfg.cycleTimeout,
		failureEvent: cfg.failureEvent,
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Cycles returns the number of completed cycles.
func (o *Orchestrator) Cycles() uint64 {
	return o.cycles.Load()
}

// Run loops until ctx is cancelled. A cycle that has started is always
// allowed to finish and report before Run returns.
// Returns ErrAlreadyStarted or ErrStopped if the orchestrator is not idle.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		if o.State() == StateStopped {
			return ErrStopped
		}
		return ErrAlreadyStarted
	}
	defer o.state.Store(int32(StateStopped))

	o.logger.InfoContext(ctx, "orchestrator started", slog.Duration("interval", o.interval))
	defer func() {
		o.logger.InfoContext(context.WithoutCancel(ctx), "orchestrator stopped", slog.Uint64("cycles", o.Cycles()))
	}()

	for ctx.Err() == nil {
		o.state.Store(int32(StateRunning))
		o.runCycle(ctx)

		o.state.Store(int32(StateSleeping))
		if !sleep(ctx, o.interval) {
			break
		}
	}
	return nil
}

func (o *Orchestrator) runCycle(ctx context.Context) {
	c := &cycle{correlationID: correlation.New(), startedAt: time.Now()}
	cctx := correlation.WithID(context.WithoutCancel(ctx), c.correlationID)

	c.finish(o.execute(cctx))
	o.cycles.Add(1)

	props := c.properties(o.serviceName, o.environment)
	switch c.outcome {
	case OutcomeSuccess:
		o.reportSuccess(cctx, c, props)
	case OutcomeFailure:
		o.reportFailure(cctx, c, props)
	}
}

// execute runs the unit once. Panics are converted into failures.
func (o *Orchestrator) execute(ctx context.Context) (err error) {
	if o.cycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cycleTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = work.PanicError("", r)
		}
	}()
	return o.unit.Execute(ctx)
}

func (o *Orchestrator) reportSuccess(ctx context.Context, c *cycle, props map[string]string) {
	o.sink.EmitEvent(ctx, o.names.successEvent, props)
	o.sink.IncrementCounter(ctx, o.names.successCounter, 1)

	o.logger.InfoContext(ctx, "cycle succeeded",
		slog.Duration("duration", c.duration()),
	)
}

func (o *Orchestrator) reportFailure(ctx context.Context, c *cycle, props map[string]string) {
	o.sink.EmitException(ctx, telemetry.NewStructuredError(c.err, props))
	o.sink.IncrementCounter(ctx, o.names.failureCounter, 1)

	if o.failureEvent {
		eventProps := maps.Clone(props)
		eventProps[telemetry.PropErrorMessage] = c.err.Error()
		o.sink.EmitEvent(ctx, o.names.failureEvent, eventProps)
	}

	o.logger.ErrorContext(ctx, "cycle failed",
		slog.Duration("duration", c.duration()),
		slog.Any("error", c.err),
	)
}

// sleep waits for d or until ctx is done. Reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return ctx.Err() == nil
	}
}
