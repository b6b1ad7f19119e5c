package internal_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulse/internal"
	"github.com/dmitrymomot/pulse/pkg/health"
	"github.com/dmitrymomot/pulse/pkg/telemetry"
	"github.com/dmitrymomot/pulse/pkg/work"
)

func newSupervisor(t *testing.T, unit work.Unit, sink telemetry.Sink, opts ...internal.Option) *internal.Supervisor {
	t.Helper()

	opts = append([]internal.Option{
		internal.WithCycleInterval(2 * time.Millisecond),
		internal.WithHeartbeatInterval(5 * time.Millisecond),
	}, opts...)
	s, err := internal.New(unit, sink, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

func okUnit() work.Unit {
	return work.UnitFunc(func(context.Context) error { return nil })
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := internal.New(nil, telemetry.Nope{})
	require.ErrorIs(t, err, internal.ErrUnitRequired)

	_, err = internal.New(okUnit(), nil)
	require.ErrorIs(t, err, internal.ErrSinkRequired)
}

func TestSupervisor(t *testing.T) {
	t.Parallel()

	t.Run("runs work and heartbeat", func(t *testing.T) {
		t.Parallel()

		sink := telemetry.NewMemorySink()
		s := newSupervisor(t, okUnit(), sink)

		require.NoError(t, s.Start(context.Background()))
		require.Eventually(t, func() bool {
			return s.Cycles() >= 2 && s.HeartbeatTicks() >= 2
		}, 2*time.Second, 5*time.Millisecond)
		require.NoError(t, s.Stop(context.Background()))

		assert.Len(t, sink.Events(successEvent), int(s.Cycles()))
		assert.Equal(t, float64(s.HeartbeatTicks()), sink.Total("pulseHeartbeat"))
		assert.Equal(t, internal.StateStopped, s.State())
	})

	t.Run("heartbeat is independent of failures", func(t *testing.T) {
		t.Parallel()

		sink := telemetry.NewMemorySink()
		unit := work.UnitFunc(func(context.Context) error { return errors.New("always broken") })
		s := newSupervisor(t, unit, sink)

		require.NoError(t, s.Start(context.Background()))
		require.Eventually(t, func() bool { return s.HeartbeatTicks() >= 3 }, 2*time.Second, 5*time.Millisecond)
		require.NoError(t, s.Stop(context.Background()))

		assert.NotEmpty(t, sink.Exceptions())
		assert.Empty(t, sink.Events(successEvent))
		assert.GreaterOrEqual(t, sink.Total("pulseHeartbeat"), float64(3))
	})

	t.Run("heartbeat is independent of slow work", func(t *testing.T) {
		t.Parallel()

		sink := telemetry.NewMemorySink()
		release := make(chan struct{})
		unit := work.UnitFunc(func(context.Context) error {
			<-release
			return nil
		})
		s := newSupervisor(t, unit, sink)
		// Cleanups run LIFO: release the unit before the deferred Stop.
		t.Cleanup(func() { close(release) })

		require.NoError(t, s.Start(context.Background()))
		require.Eventually(t, func() bool { return s.HeartbeatTicks() >= 3 }, 2*time.Second, 5*time.Millisecond)
		assert.Equal(t, internal.StateRunning, s.State())
		assert.Empty(t, sink.Events())
	})

	t.Run("nothing is emitted after stop", func(t *testing.T) {
		t.Parallel()

		sink := telemetry.NewMemorySink()
		s := newSupervisor(t, okUnit(), sink)

		require.NoError(t, s.Start(context.Background()))
		require.Eventually(t, func() bool { return s.Cycles() >= 2 }, 2*time.Second, 5*time.Millisecond)
		require.NoError(t, s.Stop(context.Background()))

		n := len(sink.Records())
		time.Sleep(30 * time.Millisecond)
		assert.Len(t, sink.Records(), n)
	})

	t.Run("stop waits for the in-flight cycle", func(t *testing.T) {
		t.Parallel()

		sink := telemetry.NewMemorySink()
		entered := make(chan struct{})
		release := make(chan struct{})
		var first bool
		unit := work.UnitFunc(func(context.Context) error {
			if !first {
				first = true
				close(entered)
				<-release
			}
			return nil
		})
		s := newSupervisor(t, unit, sink)

		require.NoError(t, s.Start(context.Background()))
		<-entered

		stopped := make(chan error, 1)
		go func() { stopped <- s.Stop(context.Background()) }()

		select {
		case <-stopped:
			t.Fatal("stop returned before the cycle finished")
		case <-time.After(30 * time.Millisecond):
		}

		close(release)
		require.NoError(t, <-stopped)
		assert.Len(t, sink.Events(successEvent), 1)
	})

	t.Run("stop is bounded by its context", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		entered := make(chan struct{})
		unit := work.UnitFunc(func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
		s := newSupervisor(t, unit, telemetry.Nope{})
		t.Cleanup(func() { close(release) })

		require.NoError(t, s.Start(context.Background()))
		<-entered

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := s.Stop(ctx)
		require.ErrorIs(t, err, internal.ErrShutdownTimeout)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("repeated stop after timeout waits for quiescence", func(t *testing.T) {
		t.Parallel()

		sink := telemetry.NewMemorySink()
		release := make(chan struct{})
		entered := make(chan struct{})
		var once sync.Once
		unit := work.UnitFunc(func(context.Context) error {
			once.Do(func() { close(entered) })
			<-release
			return nil
		})
		s := newSupervisor(t, unit, sink)
		var releaseOnce sync.Once
		t.Cleanup(func() { releaseOnce.Do(func() { close(release) }) })

		require.NoError(t, s.Start(context.Background()))
		<-entered

		for range 2 {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			err := s.Stop(ctx)
			cancel()
			require.ErrorIs(t, err, internal.ErrShutdownTimeout)
		}
		assert.Empty(t, sink.Events(successEvent))

		releaseOnce.Do(func() { close(release) })
		require.NoError(t, s.Stop(context.Background()))
		require.Len(t, sink.Events(successEvent), 1)

		n := len(sink.Records())
		time.Sleep(30 * time.Millisecond)
		assert.Len(t, sink.Records(), n)
		assert.Equal(t, internal.StateStopped, s.State())
	})

	t.Run("lifecycle", func(t *testing.T) {
		t.Parallel()

		s := newSupervisor(t, okUnit(), telemetry.Nope{})
		assert.Nil(t, s.Done())

		require.NoError(t, s.Start(context.Background()))
		assert.ErrorIs(t, s.Start(context.Background()), internal.ErrAlreadyStarted)

		require.NoError(t, s.Stop(context.Background()))
		require.NoError(t, s.Stop(context.Background()))
		assert.ErrorIs(t, s.Start(context.Background()), internal.ErrStopped)

		select {
		case <-s.Done():
		default:
			t.Fatal("work loop still running after stop")
		}
	})

	t.Run("stop before start", func(t *testing.T) {
		t.Parallel()

		s := newSupervisor(t, okUnit(), telemetry.Nope{})
		require.NoError(t, s.Stop(context.Background()))
		assert.ErrorIs(t, s.Start(context.Background()), internal.ErrStopped)
	})

	t.Run("run stops on context cancel", func(t *testing.T) {
		t.Parallel()

		sink := telemetry.NewMemorySink()
		s := newSupervisor(t, okUnit(), sink, internal.WithShutdownTimeout(time.Second))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.Run(ctx) }()

		require.Eventually(t, func() bool { return s.Cycles() >= 1 }, 2*time.Second, 5*time.Millisecond)
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("run did not return")
		}
		assert.Equal(t, internal.StateStopped, s.State())
	})
}

func TestSupervisorHealthcheck(t *testing.T) {
	t.Parallel()

	s := newSupervisor(t, okUnit(), telemetry.Nope{}, internal.WithHeartbeatInterval(10*time.Millisecond))
	check := s.Healthcheck()

	require.ErrorIs(t, check(context.Background()), internal.ErrNotRunning)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, check(context.Background()))
	require.Eventually(t, func() bool { return !s.LastHeartbeat().IsZero() && s.HeartbeatTicks() > 0 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, check(context.Background()))

	require.NoError(t, s.Stop(context.Background()))
	require.ErrorIs(t, check(context.Background()), internal.ErrNotRunning)
}

// slowSink delays every counter increment.
type slowSink struct {
	telemetry.Nope
	delay time.Duration
}

func (s slowSink) IncrementCounter(context.Context, string, float64) { time.Sleep(s.delay) }

func TestSupervisorHealthcheckSkippedTicks(t *testing.T) {
	t.Parallel()

	t.Run("reports skipped ticks", func(t *testing.T) {
		t.Parallel()

		s := newSupervisor(t, okUnit(), slowSink{delay: 40 * time.Millisecond},
			internal.WithHeartbeatInterval(25*time.Millisecond),
			internal.WithMaxInflightTicks(1),
		)
		check := s.Healthcheck()

		require.NoError(t, s.Start(context.Background()))
		require.Eventually(t, func() bool {
			return errors.Is(check(context.Background()), internal.ErrHeartbeatSkipped)
		}, 2*time.Second, 5*time.Millisecond)
	})

	t.Run("stale heartbeat includes skipped count", func(t *testing.T) {
		t.Parallel()

		sink := newGateSink()
		s := newSupervisor(t, okUnit(), sink,
			internal.WithHeartbeatInterval(2*time.Millisecond),
			internal.WithMaxInflightTicks(1),
		)
		t.Cleanup(sink.release)
		check := s.Healthcheck()

		require.NoError(t, s.Start(context.Background()))

		var err error
		require.Eventually(t, func() bool {
			err = check(context.Background())
			return errors.Is(err, health.ErrStale)
		}, 2*time.Second, 5*time.Millisecond)
		assert.Contains(t, err.Error(), "skipped ticks:")
	})
}
