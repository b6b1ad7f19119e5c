package work

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"

	"github.com/dmitrymomot/pulse/pkg/telemetry"
)

// Kind classifies a work failure.
type Kind string

const (
	// KindStep is a failure inside a local step.
	KindStep Kind = "step"
	// KindDependency is a failure reaching or reported by an external dependency.
	KindDependency Kind = "dependency"
	// KindTimeout is a step that ran out of time.
	KindTimeout Kind = "timeout"
	// KindPanic is a recovered panic.
	KindPanic Kind = "panic"
)

// Sentinel errors.
var (
	// ErrNoSteps is returned by a Sequence with no steps.
	ErrNoSteps = errors.New("work: sequence has no steps")

	// ErrUnexpectedStatus is wrapped by StatusError.
	ErrUnexpectedStatus = errors.New("work: unexpected dependency status")

	// ErrPanic is wrapped by errors built from recovered panics.
	ErrPanic = errors.New("work: panic")

	// ErrInvalidRequest is returned when a dependency request cannot be built.
	ErrInvalidRequest = errors.New("work: invalid dependency request")
)

// Error is a failed step.
type Error struct {
	Err    error
	Step   string
	Kind   Kind
	frames []runtime.Frame
}

// NewError wraps err as a failure of step, capturing the caller's stack.
func NewError(step string, kind Kind, err error) *Error {
	return &Error{
		Err:    err,
		Step:   step,
		Kind:   kind,
		frames: telemetry.CallerFrames(1),
	}
}

func (e *Error) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("work: failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("work: step %q failed (%s): %v", e.Step, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorType reports "work.<kind>" as the exception type.
func (e *Error) ErrorType() string { return "work." + string(e.Kind) }

// StackFrames returns the frames captured where the failure was created.
func (e *Error) StackFrames() []runtime.Frame { return e.frames }

// StatusError is a dependency answering with a status outside the accepted range.
type StatusError struct {
	URL        string
	Status     string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s responded %s", ErrUnexpectedStatus, e.URL, e.Status)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// PanicError builds the failure recorded for a recovered panic value.
func PanicError(step string, recovered any) *Error {
	var err error
	if e, ok := recovered.(error); ok {
		err = fmt.Errorf("%w: %w", ErrPanic, e)
	} else {
		err = fmt.Errorf("%w: %v", ErrPanic, recovered)
	}
	// Called from the deferred recover, so the panicking frame sits below
	// runtime.gopanic in the captured stack.
	return &Error{Err: err, Step: step, Kind: KindPanic, frames: telemetry.CallerFrames(1)}
}

// classify picks a Kind for an error returned by a step.
func classify(err error, fallback Kind) Kind {
	var werr *Error
	if errors.As(err, &werr) {
		return werr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return KindTimeout
	}
	return fallback
}
