package work_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulse/pkg/telemetry"
	"github.com/dmitrymomot/pulse/pkg/work"
)

func TestSequence(t *testing.T) {
	t.Parallel()

	t.Run("runs steps in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		step := func(name string) work.Step {
			return work.Compute(name, func(context.Context) error {
				order = append(order, name)
				return nil
			})
		}

		unit := work.Sequence(step("compute"), nil, step("call"), step("publish"))
		require.NoError(t, unit.Execute(context.Background()))
		assert.Equal(t, []string{"compute", "call", "publish"}, order)
	})

	t.Run("stops at first failure", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("division by zero")
		var ran []string
		unit := work.Sequence(
			work.Compute("compute", func(context.Context) error {
				ran = append(ran, "compute")
				return cause
			}),
			work.Compute("call", func(context.Context) error {
				ran = append(ran, "call")
				return nil
			}),
		)

		err := unit.Execute(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, []string{"compute"}, ran)

		var werr *work.Error
		require.ErrorAs(t, err, &werr)
		assert.Equal(t, "compute", werr.Step)
		assert.Equal(t, work.KindStep, werr.Kind)
		assert.Equal(t, "work.step", werr.ErrorType())
		assert.NotEmpty(t, werr.StackFrames())
	})

	t.Run("recovers panics", func(t *testing.T) {
		t.Parallel()

		unit := work.Sequence(work.Compute("explode", func(context.Context) error {
			panic("kaboom")
		}))

		err := unit.Execute(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, work.ErrPanic)

		var werr *work.Error
		require.ErrorAs(t, err, &werr)
		assert.Equal(t, work.KindPanic, werr.Kind)
		assert.Equal(t, "explode", werr.Step)
		assert.Contains(t, err.Error(), "kaboom")
	})

	t.Run("deadline is classified as timeout", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		defer cancel()

		err := work.Sequence(work.Delay("slow", time.Second)).Execute(ctx)
		var werr *work.Error
		require.ErrorAs(t, err, &werr)
		assert.Equal(t, work.KindTimeout, werr.Kind)
	})

	t.Run("empty sequence fails", func(t *testing.T) {
		t.Parallel()

		err := work.Sequence().Execute(context.Background())
		assert.ErrorIs(t, err, work.ErrNoSteps)
	})

	t.Run("structured error keeps classification", func(t *testing.T) {
		t.Parallel()

		err := work.Sequence(work.Compute("compute", func(context.Context) error {
			return errors.New("bad input")
		})).Execute(context.Background())

		exc := telemetry.NewStructuredError(err, nil)
		require.NotNil(t, exc)
		assert.Equal(t, "work.step", exc.Type)
		assert.Contains(t, exc.Message, "bad input")
		assert.NotEmpty(t, exc.StackTrace)
	})

	t.Run("wrapped failure keeps the caller's message", func(t *testing.T) {
		t.Parallel()

		inner := work.NewError("", work.KindDependency, errors.New("503"))
		err := work.Sequence(work.Compute("fetch", func(context.Context) error {
			return fmt.Errorf("fetch users for tenant 42: %w", inner)
		})).Execute(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "fetch users for tenant 42")
		assert.Contains(t, err.Error(), "503")
		assert.ErrorIs(t, err, inner)

		var werr *work.Error
		require.ErrorAs(t, err, &werr)
		assert.Equal(t, "fetch", werr.Step)
		assert.Equal(t, work.KindDependency, werr.Kind)
		assert.Empty(t, inner.Step, "inner error must not be modified")

		exc := telemetry.NewStructuredError(err, nil)
		assert.Contains(t, exc.Message, "fetch users for tenant 42")
	})

	t.Run("shared error value is not modified", func(t *testing.T) {
		t.Parallel()

		shared := work.NewError("", work.KindDependency, errors.New("down"))
		fail := func(context.Context) error { return shared }

		errA := work.Sequence(work.Compute("a", fail)).Execute(context.Background())
		errB := work.Sequence(work.Compute("b", fail)).Execute(context.Background())

		var a, b *work.Error
		require.ErrorAs(t, errA, &a)
		require.ErrorAs(t, errB, &b)
		assert.Equal(t, "a", a.Step)
		assert.Equal(t, "b", b.Step)
		assert.Empty(t, shared.Step)
		assert.Equal(t, shared.StackFrames(), a.StackFrames())
	})
}

func TestDelay(t *testing.T) {
	t.Parallel()

	start := time.Now()
	require.NoError(t, work.Delay("calc", 20*time.Millisecond).Run(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	require.NoError(t, work.Delay("noop", 0).Run(context.Background()))
}

func TestUnitFunc(t *testing.T) {
	t.Parallel()

	called := false
	var unit work.Unit = work.UnitFunc(func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, unit.Execute(context.Background()))
	assert.True(t, called)
}
