package telemetry

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/dmitrymomot/pulse/pkg/correlation"
)

// SentryConfig holds Sentry client configuration.
type SentryConfig struct {
	DSN         string
	Environment string
	Release     string
	// SampleRate for error events, 0 means 1.0.
	SampleRate float64
}

// NewSentryHub creates a dedicated Sentry hub for cfg.
// Returns a nil hub and no error when DSN is empty, so callers can skip
// Sentry in local development.
func NewSentryHub(cfg SentryConfig) (*sentry.Hub, error) {
	if cfg.DSN == "" {
		return nil, nil //nolint:nilnil // no DSN means sentry is disabled
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		SampleRate:  cfg.SampleRate,
		EnableLogs:  true,
	})
	if err != nil {
		return nil, errors.Join(ErrSentryInit, err)
	}
	return sentry.NewHub(client, sentry.NewScope()), nil
}

// SentrySink reports exceptions as Sentry error events.
// Events are recorded as breadcrumbs so they show up as context on the next
// issue; counters are not supported by Sentry and are ignored.
type SentrySink struct {
	hub *sentry.Hub
}

// NewSentrySink creates a sink reporting to hub. A nil hub yields a sink that
// drops everything.
func NewSentrySink(hub *sentry.Hub) *SentrySink {
	return &SentrySink{hub: hub}
}

func (s *SentrySink) EmitEvent(ctx context.Context, name string, props map[string]string) {
	if s.hub == nil {
		return
	}
	data := make(map[string]any, len(props)+1)
	for k, v := range props {
		data[k] = v
	}
	if id, ok := correlationID(ctx, props); ok {
		data[PropCorrelationID] = id
	}
	s.hub.AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "default",
		Category:  "telemetry",
		Message:   name,
		Data:      data,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now().UTC(),
	}, nil)
}

func (s *SentrySink) IncrementCounter(context.Context, string, float64) {}

func (s *SentrySink) EmitException(ctx context.Context, exc *StructuredError) {
	if s.hub == nil || exc == nil {
		return
	}
	s.hub.CaptureEvent(s.toEvent(ctx, exc))
}

// Flush waits until buffered events are sent or timeout passes.
func (s *SentrySink) Flush(timeout time.Duration) bool {
	if s.hub == nil {
		return true
	}
	return s.hub.Flush(timeout)
}

func (s *SentrySink) toEvent(ctx context.Context, exc *StructuredError) *sentry.Event {
	event := sentry.NewEvent()
	event.Level = sentry.LevelError
	event.Message = exc.Message
	event.Timestamp = exc.Timestamp

	event.Tags = map[string]string{}
	if id, ok := correlationID(ctx, exc.Properties); ok {
		event.Tags["correlation_id"] = id
	}
	if env := exc.Properties[PropEnvironment]; env != "" {
		event.Tags["environment"] = env
	}
	if svc := exc.Properties[PropServiceName]; svc != "" {
		event.Tags["service"] = svc
	}

	event.Extra = make(map[string]any, len(exc.Properties))
	for _, k := range slices.Sorted(maps.Keys(exc.Properties)) {
		event.Extra[k] = exc.Properties[k]
	}

	event.Exception = []sentry.Exception{{
		Type:       exc.Type,
		Value:      exc.Message,
		Stacktrace: sentryStacktrace(exc),
	}}
	return event
}

// sentryStacktrace converts innermost-first frames into Sentry's
// outermost-first order.
func sentryStacktrace(exc *StructuredError) *sentry.Stacktrace {
	if len(exc.Frames) == 0 {
		return nil
	}
	frames := make([]sentry.Frame, 0, len(exc.Frames))
	for i := len(exc.Frames) - 1; i >= 0; i-- {
		frames = append(frames, sentry.NewFrame(exc.Frames[i]))
	}
	return &sentry.Stacktrace{Frames: frames}
}

func correlationID(ctx context.Context, props map[string]string) (string, bool) {
	if id, ok := correlation.FromContext(ctx); ok {
		return id, true
	}
	id := props[PropCorrelationID]
	return id, id != ""
}
