package telemetry

import (
	"context"
	"log/slog"
	"maps"
	"slices"
)

// LogSink writes telemetry as structured log lines.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs through l.
// Events and counters log at info, exceptions at error.
func NewLogSink(l *slog.Logger) *LogSink {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	return &LogSink{logger: l}
}

func (s *LogSink) EmitEvent(ctx context.Context, name string, props map[string]string) {
	s.logger.InfoContext(ctx, "telemetry event",
		slog.String("event", name),
		slog.Any("properties", propsAttr(props)),
	)
}

func (s *LogSink) IncrementCounter(ctx context.Context, name string, delta float64) {
	s.logger.DebugContext(ctx, "telemetry counter",
		slog.String("counter", name),
		slog.Float64("delta", delta),
	)
}

func (s *LogSink) EmitException(ctx context.Context, exc *StructuredError) {
	if exc == nil {
		return
	}
	s.logger.ErrorContext(ctx, "telemetry exception",
		slog.String("error", exc.Message),
		slog.String("type", exc.Type),
		slog.Time("timestamp", exc.Timestamp),
		slog.Any("properties", propsAttr(exc.Properties)),
		slog.String("stack", exc.StackTrace),
	)
}

// propsAttr renders properties as a sorted slog group.
func propsAttr(props map[string]string) slog.Value {
	attrs := make([]slog.Attr, 0, len(props))
	for _, k := range slices.Sorted(maps.Keys(props)) {
		attrs = append(attrs, slog.String(k, props[k]))
	}
	return slog.GroupValue(attrs...)
}
