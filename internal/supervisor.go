package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dmitrymomot/pulse/pkg/health"
	"github.com/dmitrymomot/pulse/pkg/telemetry"
	"github.com/dmitrymomot/pulse/pkg/work"
)

type lifecycle int

const (
	lifecycleIdle lifecycle = iota
	lifecycleRunning
	lifecycleStopped
)

// Supervisor owns the orchestrator and the heartbeat. It starts them as
// independent goroutines over a shared sink and stops them in order:
// heartbeat first, then the work loop.
type Supervisor struct {
	cfg          *config
	logger       *slog.Logger
	orchestrator *Orchestrator
	heartbeat    *Heartbeat

	mu       sync.Mutex
	state    lifecycle
	cancel   context.CancelFunc
	loopDone chan struct{}
	loopErr  error
}

// New creates a supervisor for unit reporting into sink.
func New(unit work.Unit, sink telemetry.Sink, opts ...Option) (*Supervisor, error) {
	if unit == nil {
		return nil, ErrUnitRequired
	}
	if sink == nil {
		return nil, ErrSinkRequired
	}

	cfg := newConfig(opts...)
	return &Supervisor{
		cfg:          cfg,
		logger:       cfg.logger.With(slog.String("activity", "supervisor")),
		orchestrator: newOrchestrator(unit, sink, cfg),
		heartbeat:    newHeartbeat(sink, cfg),
	}, nil
}

// Start launches the heartbeat and the work loop and returns immediately.
// Both stop when ctx is cancelled or Stop is called.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case lifecycleRunning:
		return ErrAlreadyStarted
	case lifecycleStopped:
		return ErrStopped
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := s.heartbeat.Start(runCtx, s.cfg.heartbeatInterval); err != nil {
		cancel()
		return fmt.Errorf("start heartbeat: %w", err)
	}

	s.cancel = cancel
	s.loopDone = make(chan struct{})
	s.state = lifecycleRunning

	go func() {
		defer close(s.loopDone)
		s.loopErr = s.orchestrator.Run(runCtx)
	}()

	s.logger.InfoContext(ctx, "supervisor started",
		slog.String("service", s.cfg.serviceName),
		slog.String("environment", s.cfg.environment),
	)
	return nil
}

// Stop cancels both activities and waits for the heartbeat, then for the
// work loop. A cycle in progress runs to completion and reports first.
// Stop is bounded by ctx. Cancellation happens once; repeated calls wait for
// the same teardown and return nil once both activities have quiesced.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	first := s.state != lifecycleStopped
	if first && s.state == lifecycleRunning {
		s.cancel()
	}
	s.state = lifecycleStopped
	loopDone := s.loopDone
	s.mu.Unlock()

	if loopDone == nil {
		return nil
	}
	if first {
		s.logger.InfoContext(ctx, "supervisor stopping")
	}

	var errs []error
	if err := s.heartbeat.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop heartbeat: %w", err))
	}

	select {
	case <-loopDone:
		if s.loopErr != nil {
			errs = append(errs, s.loopErr)
		}
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("stop orchestrator: %w", errors.Join(ErrShutdownTimeout, ctx.Err())))
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		s.logger.ErrorContext(ctx, "supervisor stopped with errors", slog.Any("error", err))
		return err
	}

	if first {
		s.logger.InfoContext(ctx, "supervisor stopped", slog.Uint64("cycles", s.orchestrator.Cycles()))
	}
	return nil
}

// Run starts the supervisor and blocks until ctx is cancelled or the process
// receives SIGINT or SIGTERM, then stops it within the shutdown timeout.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := s.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), s.cfg.shutdownTimeout)
	defer stopCancel()
	return s.Stop(stopCtx)
}

// Done is closed when the work loop has exited. It is nil before Start.
func (s *Supervisor) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loopDone
}

// State returns the work loop state.
func (s *Supervisor) State() State {
	return s.orchestrator.State()
}

// Cycles returns the number of completed work cycles.
func (s *Supervisor) Cycles() uint64 {
	return s.orchestrator.Cycles()
}

// HeartbeatTicks returns the number of completed heartbeat emissions.
func (s *Supervisor) HeartbeatTicks() uint64 {
	return s.heartbeat.Ticks()
}

// LastHeartbeat returns the time of the last heartbeat emission.
func (s *Supervisor) LastHeartbeat() time.Time {
	return s.heartbeat.LastTick()
}

// Healthcheck returns a check that fails while the supervisor is not running,
// when the heartbeat is older than three heartbeat intervals, or when
// heartbeat ticks were skipped since the previous check.
func (s *Supervisor) Healthcheck() health.CheckFunc {
	fresh := health.Freshness(s.heartbeat.LastTick, staleHeartbeatFactor*s.cfg.heartbeatInterval)
	var seenSkipped atomic.Uint64
	return func(ctx context.Context) error {
		s.mu.Lock()
		running := s.state == lifecycleRunning
		s.mu.Unlock()
		if !running {
			return ErrNotRunning
		}

		skipped := s.heartbeat.Skipped()
		prev := seenSkipped.Swap(skipped)
		if err := fresh(ctx); err != nil {
			return fmt.Errorf("%w (skipped ticks: %d)", err, skipped)
		}
		if skipped > prev {
			return fmt.Errorf("%w: %d since last check", ErrHeartbeatSkipped, skipped-prev)
		}
		return nil
	}
}
