package telemetry_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulse/pkg/correlation"
	"github.com/dmitrymomot/pulse/pkg/telemetry"
)

// capturingHub returns a hub whose events are intercepted in BeforeSend
// and never leave the process.
func capturingHub(t *testing.T) (*sentry.Hub, func() []*sentry.Event) {
	t.Helper()

	var (
		mu     sync.Mutex
		events []*sentry.Event
	)
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn: "https://public@example.com/1",
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			mu.Lock()
			events = append(events, event)
			mu.Unlock()
			return nil
		},
	})
	require.NoError(t, err)

	return sentry.NewHub(client, sentry.NewScope()), func() []*sentry.Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]*sentry.Event(nil), events...)
	}
}

func TestSentrySink(t *testing.T) {
	t.Parallel()

	t.Run("exception becomes error event", func(t *testing.T) {
		t.Parallel()

		hub, captured := capturingHub(t)
		sink := telemetry.NewSentrySink(hub)

		ctx := correlation.WithID(context.Background(), "cid-9")
		exc := telemetry.NewStructuredError(errors.New("dependency down"), map[string]string{
			telemetry.PropEnvironment: "staging",
			telemetry.PropServiceName: "WorkerServiceDemo",
		})
		sink.EmitException(ctx, exc)
		sink.Flush(0)

		events := captured()
		require.Len(t, events, 1)
		ev := events[0]
		assert.Equal(t, sentry.LevelError, ev.Level)
		assert.Equal(t, "cid-9", ev.Tags["correlation_id"])
		assert.Equal(t, "staging", ev.Tags["environment"])
		assert.Equal(t, "WorkerServiceDemo", ev.Tags["service"])
		require.Len(t, ev.Exception, 1)
		assert.Equal(t, "dependency down", ev.Exception[0].Value)
		assert.Equal(t, "*errors.errorString", ev.Exception[0].Type)
		require.NotNil(t, ev.Exception[0].Stacktrace)
		assert.NotEmpty(t, ev.Exception[0].Stacktrace.Frames)
	})

	t.Run("correlation falls back to properties", func(t *testing.T) {
		t.Parallel()

		hub, captured := capturingHub(t)
		sink := telemetry.NewSentrySink(hub)
		sink.EmitException(context.Background(), telemetry.NewStructuredError(errors.New("x"), map[string]string{
			telemetry.PropCorrelationID: "from-props",
		}))

		events := captured()
		require.Len(t, events, 1)
		assert.Equal(t, "from-props", events[0].Tags["correlation_id"])
	})

	t.Run("nil hub drops everything", func(t *testing.T) {
		t.Parallel()

		sink := telemetry.NewSentrySink(nil)
		assert.NotPanics(t, func() {
			sink.EmitEvent(context.Background(), "e", nil)
			sink.IncrementCounter(context.Background(), "c", 1)
			sink.EmitException(context.Background(), telemetry.NewStructuredError(errors.New("x"), nil))
		})
		assert.True(t, sink.Flush(0))
	})
}

func TestNewSentryHub(t *testing.T) {
	t.Parallel()

	hub, err := telemetry.NewSentryHub(telemetry.SentryConfig{})
	require.NoError(t, err)
	assert.Nil(t, hub)

	hub, err = telemetry.NewSentryHub(telemetry.SentryConfig{DSN: "https://public@example.com/1", Environment: "test"})
	require.NoError(t, err)
	require.NotNil(t, hub)
	assert.Equal(t, "test", hub.Client().Options().Environment)

	_, err = telemetry.NewSentryHub(telemetry.SentryConfig{DSN: "::not a dsn"})
	assert.ErrorIs(t, err, telemetry.ErrSentryInit)
}
