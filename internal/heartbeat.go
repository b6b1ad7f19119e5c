package internal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/pulse/pkg/telemetry"
)

// tick is one heartbeat emission.
type tick struct {
	at       time.Time
	services []string
}

// Heartbeat increments a liveness counter per service name on a fixed
// ticker. It runs independently of the work loop, so a failing or slow work
// unit does not affect it.
type Heartbeat struct {
	sink        telemetry.Sink
	logger      *slog.Logger
	services    []string
	maxInflight int

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	drained  chan struct{}
	inflight *errgroup.Group
	started  bool
	stopped  bool

	startedAt atomic.Int64
	lastTick  atomic.Int64
	ticks     atomic.Uint64
	skipped   atomic.Uint64
}

// NewHeartbeat creates a heartbeat reporting into sink.
func NewHeartbeat(sink telemetry.Sink, opts ...Option) *Heartbeat {
	return newHeartbeat(sink, newConfig(opts...))
}

func newHeartbeat(sink telemetry.Sink, cfg *config) *Heartbeat {
	return &Heartbeat{
		sink:        sink,
		logger:      cfg.logger.With(slog.String("activity", "heartbeat")),
		services:    cfg.heartbeatServices,
		maxInflight: cfg.maxInflightTicks,
	}
}

// Start launches the ticker. The first tick fires one interval after Start.
// The heartbeat stops when ctx is cancelled or Stop is called.
func (h *Heartbeat) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case h.stopped:
		return ErrStopped
	case h.started:
		return ErrAlreadyStarted
	}

	ctx, h.cancel = context.WithCancel(ctx)
	h.done = make(chan struct{})
	h.inflight = new(errgroup.Group)
	h.inflight.SetLimit(h.maxInflight)
	h.started = true
	h.startedAt.Store(time.Now().UnixNano())

	go h.loop(ctx, interval)

	h.logger.InfoContext(ctx, "heartbeat started",
		slog.Duration("interval", interval),
		slog.Any("services", h.services),
	)
	return nil
}

// Stop cancels the ticker and waits for the loop and in-flight emissions,
// bounded by ctx. No tick is emitted after Stop returns nil. The ticker is
// cancelled once; repeated calls wait for the same teardown, so a call
// after a timed-out Stop returns nil only once the heartbeat has quiesced.
func (h *Heartbeat) Stop(ctx context.Context) error {
	h.mu.Lock()
	first := !h.stopped
	if first {
		h.stopped = true
		if h.started {
			h.cancel()
			h.drained = make(chan struct{})
			go func(done, drained chan struct{}, inflight *errgroup.Group) {
				<-done
				_ = inflight.Wait()
				close(drained)
			}(h.done, h.drained, h.inflight)
		}
	}
	drained := h.drained
	h.mu.Unlock()

	if drained == nil {
		return nil
	}

	select {
	case <-drained:
		if first {
			h.logger.InfoContext(ctx, "heartbeat stopped", slog.Uint64("ticks", h.Ticks()))
		}
		return nil
	case <-ctx.Done():
		return errors.Join(ErrShutdownTimeout, ctx.Err())
	}
}

// LastTick returns the time of the last completed emission. Before the first
// tick it returns the start time; before Start it returns the zero time.
func (h *Heartbeat) LastTick() time.Time {
	ns := h.lastTick.Load()
	if ns == 0 {
		ns = h.startedAt.Load()
	}
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Ticks returns the number of completed emissions.
func (h *Heartbeat) Ticks() uint64 {
	return h.ticks.Load()
}

// Skipped returns the number of ticks dropped because too many emissions
// were still in flight.
func (h *Heartbeat) Skipped() uint64 {
	return h.skipped.Load()
}

func (h *Heartbeat) loop(ctx context.Context, interval time.Duration) {
	defer close(h.done)

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case at := <-t.C:
			// select picks randomly when both are ready.
			if ctx.Err() != nil {
				return
			}
			h.fire(ctx, tick{at: at, services: h.services})
		}
	}
}

func (h *Heartbeat) fire(ctx context.Context, tk tick) {
	// In-flight emissions finish even if the heartbeat is stopped meanwhile.
	ectx := context.WithoutCancel(ctx)
	ok := h.inflight.TryGo(func() error {
		h.emit(ectx, tk)
		return nil
	})
	if !ok {
		h.skipped.Add(1)
		h.logger.WarnContext(ctx, "heartbeat tick skipped",
			slog.Int("max_inflight", h.maxInflight),
			slog.Time("tick", tk.at),
		)
	}
}

func (h *Heartbeat) emit(ctx context.Context, tk tick) {
	for _, name := range tk.services {
		h.sink.IncrementCounter(ctx, HeartbeatCounter(name), 1)
	}
	storeMax(&h.lastTick, tk.at.UnixNano())
	h.ticks.Add(1)
	h.logger.DebugContext(ctx, "heartbeat", slog.Time("tick", tk.at))
}

// storeMax keeps the newest timestamp when emissions complete out of order.
func storeMax(v *atomic.Int64, ns int64) {
	for {
		cur := v.Load()
		if ns <= cur || v.CompareAndSwap(cur, ns) {
			return
		}
	}
}
