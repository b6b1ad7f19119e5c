// Package internal implements the supervisor behind the public pulse API.
//
// A Supervisor owns two independent activities that share only a telemetry
// sink: the Orchestrator, which runs the work unit on a fixed cadence and
// reports each cycle's outcome, and the Heartbeat, which increments liveness
// counters on its own ticker. Both observe the same cancellation and both
// stop before Supervisor.Stop returns.
package internal
