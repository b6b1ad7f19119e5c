package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
)

const defaultAsyncBuffer = 1024

type asyncItem struct {
	ctx   context.Context
	exc   *StructuredError
	props map[string]string
	name  string
	kind  string
	delta float64
}

// Async decouples a sink from its callers. Artifacts are queued in a bounded
// buffer and delivered by a single goroutine; when the buffer is full the
// artifact is dropped and counted rather than blocking the caller.
type Async struct {
	next    Sink
	logger  *slog.Logger
	queue   chan asyncItem
	done    chan struct{}
	dropped atomic.Uint64
	mu      sync.RWMutex
	closed  bool
}

// NewAsync starts the delivery goroutine for next.
// Call Close to drain and stop it.
func NewAsync(next Sink, opts ...AsyncOption) *Async {
	cfg := &asyncConfig{buffer: defaultAsyncBuffer}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	if next == nil {
		next = Nope{}
	}

	a := &Async{
		next:   next,
		logger: cfg.logger,
		queue:  make(chan asyncItem, cfg.buffer),
		done:   make(chan struct{}),
	}
	go a.drain()
	return a
}

func (a *Async) EmitEvent(ctx context.Context, name string, props map[string]string) {
	a.enqueue(asyncItem{ctx: ctx, kind: KindEvent, name: name, props: maps.Clone(props)})
}

func (a *Async) IncrementCounter(ctx context.Context, name string, delta float64) {
	a.enqueue(asyncItem{ctx: ctx, kind: KindCounter, name: name, delta: delta})
}

func (a *Async) EmitException(ctx context.Context, exc *StructuredError) {
	if exc == nil {
		return
	}
	a.enqueue(asyncItem{ctx: ctx, kind: KindException, exc: exc})
}

// Dropped reports how many artifacts were discarded because the buffer was
// full or the sink was closed.
func (a *Async) Dropped() uint64 {
	return a.dropped.Load()
}

// Close stops accepting artifacts and waits until the buffer is delivered or
// ctx expires.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrSinkClosed
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return errors.Join(ErrCloseTimeout, ctx.Err())
	}
}

func (a *Async) enqueue(item asyncItem) {
	if item.ctx == nil {
		item.ctx = context.Background()
	}
	// Keep values such as the correlation id, drop the caller's deadline.
	item.ctx = context.WithoutCancel(item.ctx)

	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		a.dropped.Add(1)
		return
	}

	select {
	case a.queue <- item:
	default:
		if n := a.dropped.Add(1); n == 1 || n%100 == 0 {
			a.logger.WarnContext(item.ctx, "telemetry buffer full, dropping",
				slog.String("kind", item.kind),
				slog.String("name", item.name),
				slog.Uint64("dropped_total", n),
			)
		}
	}
}

func (a *Async) drain() {
	defer close(a.done)
	for item := range a.queue {
		a.deliver(item)
	}
}

func (a *Async) deliver(item asyncItem) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.WarnContext(item.ctx, "telemetry sink panicked",
				slog.String("kind", item.kind),
				slog.Any("panic", r),
			)
		}
	}()

	switch item.kind {
	case KindEvent:
		a.next.EmitEvent(item.ctx, item.name, item.props)
	case KindCounter:
		a.next.IncrementCounter(item.ctx, item.name, item.delta)
	case KindException:
		a.next.EmitException(item.ctx, item.exc)
	}
}
