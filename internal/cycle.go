package internal

import (
	"errors"
	"strconv"
	"time"

	"github.com/dmitrymomot/pulse/pkg/telemetry"
	"github.com/dmitrymomot/pulse/pkg/work"
)

// Outcome is the terminal result of one cycle.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// names are the telemetry names derived from the metric prefix.
type names struct {
	successEvent   string
	failureEvent   string
	successCounter string
	failureCounter string
}

func newNames(prefix string) names {
	return names{
		successEvent:   prefix + "ExecutionSuccess",
		failureEvent:   prefix + "ExecutionFailure",
		successCounter: prefix + "SuccessCount",
		failureCounter: prefix + "ExecutionFailureCount",
	}
}

// HeartbeatCounter returns the counter name incremented per tick for service.
func HeartbeatCounter(service string) string {
	return service + "Heartbeat"
}

// cycle is one pass of the work loop.
type cycle struct {
	startedAt     time.Time
	finishedAt    time.Time
	err           error
	correlationID string
	outcome       Outcome
}

func (c *cycle) finish(err error) {
	c.finishedAt = time.Now()
	c.err = err
	if err != nil {
		c.outcome = OutcomeFailure
	}
}

// duration uses the monotonic clock reading of both timestamps.
func (c *cycle) duration() time.Duration {
	return c.finishedAt.Sub(c.startedAt)
}

// properties builds the shared property set for the cycle's artifacts.
func (c *cycle) properties(serviceName, environment string) map[string]string {
	d := c.duration()
	props := map[string]string{
		telemetry.PropServiceName:         serviceName,
		telemetry.PropEnvironment:         environment,
		telemetry.PropCorrelationID:       c.correlationID,
		telemetry.PropTimestamp:           c.finishedAt.UTC().Format(time.RFC3339Nano),
		telemetry.PropExecutionDuration:   strconv.FormatFloat(d.Seconds(), 'f', -1, 64),
		telemetry.PropExecutionDurationMs: strconv.FormatInt(d.Milliseconds(), 10),
	}

	var werr *work.Error
	if errors.As(c.err, &werr) {
		if werr.Step != "" {
			props[telemetry.PropStep] = werr.Step
		}
		props[telemetry.PropKind] = string(werr.Kind)
	}
	return props
}
