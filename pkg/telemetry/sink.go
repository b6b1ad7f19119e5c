package telemetry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Sink receives telemetry. Implementations must be safe for concurrent use and
// must not block the caller for long or panic.
type Sink interface {
	// EmitEvent records a named event with string properties.
	EmitEvent(ctx context.Context, name string, props map[string]string)
	// IncrementCounter adds delta to a named counter.
	IncrementCounter(ctx context.Context, name string, delta float64)
	// EmitException records a structured error.
	EmitException(ctx context.Context, exc *StructuredError)
}

// Event is a named telemetry event. Properties keys are unique by construction.
type Event struct {
	Timestamp  time.Time
	Properties map[string]string
	Name       string
}

// StructuredError is an exception record built at the catch site.
type StructuredError struct {
	Timestamp  time.Time
	Properties map[string]string
	Message    string
	Type       string
	StackTrace string
	// Frames are ordered innermost first.
	Frames []runtime.Frame
}

// Typer lets an error report its own classification for StructuredError.Type.
type Typer interface {
	ErrorType() string
}

// StackFramer lets an error expose the frames captured where it was created.
type StackFramer interface {
	StackFrames() []runtime.Frame
}

// NewStructuredError converts err into an exception record.
// The message and type are preserved; frames come from the error when it
// carries them, otherwise the caller's stack is captured.
// The props map is copied. Returns nil for a nil error.
func NewStructuredError(err error, props map[string]string) *StructuredError {
	if err == nil {
		return nil
	}

	var frames []runtime.Frame
	var sf StackFramer
	if errors.As(err, &sf) {
		frames = sf.StackFrames()
	}
	if len(frames) == 0 {
		frames = CallerFrames(1)
	}

	return &StructuredError{
		Timestamp:  time.Now().UTC(),
		Properties: maps.Clone(props),
		Message:    err.Error(),
		Type:       errorType(err),
		StackTrace: FormatFrames(frames),
		Frames:     frames,
	}
}

// CallerFrames captures the stack of the calling goroutine,
// skipping skip frames above the caller of CallerFrames.
func CallerFrames(skip int) []runtime.Frame {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}

	iter := runtime.CallersFrames(pcs[:n])
	frames := make([]runtime.Frame, 0, n)
	for {
		frame, more := iter.Next()
		frames = append(frames, frame)
		if !more {
			break
		}
	}
	return frames
}

// FormatFrames renders frames in the familiar goroutine dump layout.
func FormatFrames(frames []runtime.Frame) string {
	var b strings.Builder
	for _, f := range frames {
		b.WriteString(f.Function)
		b.WriteString("\n\t")
		b.WriteString(f.File)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(f.Line))
		b.WriteByte('\n')
	}
	return b.String()
}

func errorType(err error) string {
	var t Typer
	if errors.As(err, &t) {
		if s := t.ErrorType(); s != "" {
			return s
		}
	}
	return fmt.Sprintf("%T", err)
}

// Nope is a sink that drops everything.
type Nope struct{}

func (Nope) EmitEvent(context.Context, string, map[string]string) {}
func (Nope) IncrementCounter(context.Context, string, float64)    {}
func (Nope) EmitException(context.Context, *StructuredError)      {}

// Well-known property keys set by the supervisor.
const (
	PropCorrelationID       = "CorrelationId"
	PropEnvironment         = "Environment"
	PropServiceName         = "ServiceName"
	PropTimestamp           = "Timestamp"
	PropExecutionDuration   = "ExecutionDuration"
	PropExecutionDurationMs = "ExecutionDurationMs"
	PropErrorMessage        = "ErrorMessage"
	PropStep                = "Step"
	PropKind                = "Kind"
)
