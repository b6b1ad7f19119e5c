package work

import (
	"context"
	"errors"
	"time"
)

// Unit is the work performed once per cycle.
// A nil error is success; any error is the cycle's failure reason.
type Unit interface {
	Execute(ctx context.Context) error
}

// UnitFunc adapts a function to Unit.
type UnitFunc func(ctx context.Context) error

func (f UnitFunc) Execute(ctx context.Context) error { return f(ctx) }

// Step is one ordered sub-step of a Unit.
type Step interface {
	Name() string
	Run(ctx context.Context) error
}

type funcStep struct {
	run  func(context.Context) error
	name string
}

func (s *funcStep) Name() string                  { return s.name }
func (s *funcStep) Run(ctx context.Context) error { return s.run(ctx) }
func (s *funcStep) defaultKind() Kind             { return KindStep }

// Compute wraps a local calculation as a step.
func Compute(name string, fn func(ctx context.Context) error) Step {
	return &funcStep{name: name, run: fn}
}

// Delay is a step that simulates a calculation taking d.
// It returns early with the context error if ctx ends first.
func Delay(name string, d time.Duration) Step {
	return Compute(name, func(ctx context.Context) error {
		if d <= 0 {
			return nil
		}
		t := time.NewTimer(d)
		defer t.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	})
}

type sequence struct {
	steps []Step
}

// Sequence runs steps strictly in order and fails on the first failing step.
// The returned error is always an *Error naming that step.
func Sequence(steps ...Step) Unit {
	clean := make([]Step, 0, len(steps))
	for _, s := range steps {
		if s != nil {
			clean = append(clean, s)
		}
	}
	return &sequence{steps: clean}
}

func (s *sequence) Execute(ctx context.Context) error {
	if len(s.steps) == 0 {
		return NewError("", KindStep, ErrNoSteps)
	}
	for _, step := range s.steps {
		if err := runStep(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

// runStep executes one step, converting panics and plain errors into *Error.
func runStep(ctx context.Context, step Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = PanicError(step.Name(), r)
		}
	}()

	if err = step.Run(ctx); err == nil {
		return nil
	}

	// The returned *Error may be shared between steps, so it is copied.
	if werr, ok := err.(*Error); ok {
		if werr.Step != "" {
			return werr
		}
		named := *werr
		named.Step = step.Name()
		return &named
	}

	out := NewError(step.Name(), classify(err, stepKind(step)), err)
	var inner *Error
	if errors.As(err, &inner) && len(inner.frames) > 0 {
		out.frames = inner.frames
	}
	return out
}

// stepKind is the Kind used for plain errors returned by step.
func stepKind(step Step) Kind {
	if k, ok := step.(interface{ defaultKind() Kind }); ok {
		return k.defaultKind()
	}
	return KindStep
}
