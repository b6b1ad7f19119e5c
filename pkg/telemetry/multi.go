package telemetry

import (
	"context"
	"fmt"
	"log/slog"
)

// multiSink forwards telemetry to several sinks in order.
type multiSink struct {
	logger *slog.Logger
	sinks  []Sink
}

// Multi creates a sink that forwards to every non-nil sink in order.
// A panicking sink is recovered and logged; the remaining sinks still receive
// the artifact.
func Multi(sinks ...Sink) Sink {
	return MultiWithLogger(nil, sinks...)
}

// MultiWithLogger is Multi with a logger for recovered sink failures.
func MultiWithLogger(l *slog.Logger, sinks ...Sink) Sink {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	clean := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			clean = append(clean, s)
		}
	}
	return &multiSink{logger: l, sinks: clean}
}

func (m *multiSink) EmitEvent(ctx context.Context, name string, props map[string]string) {
	for _, s := range m.sinks {
		m.guard(ctx, "event", func() { s.EmitEvent(ctx, name, props) })
	}
}

func (m *multiSink) IncrementCounter(ctx context.Context, name string, delta float64) {
	for _, s := range m.sinks {
		m.guard(ctx, "counter", func() { s.IncrementCounter(ctx, name, delta) })
	}
}

func (m *multiSink) EmitException(ctx context.Context, exc *StructuredError) {
	for _, s := range m.sinks {
		m.guard(ctx, "exception", func() { s.EmitException(ctx, exc) })
	}
}

func (m *multiSink) guard(ctx context.Context, kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.WarnContext(ctx, "telemetry sink panicked",
				slog.String("kind", kind),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	fn()
}
