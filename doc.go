// Package pulse runs a recurring unit of work under supervision.
//
// A Supervisor owns two independent activities. The work loop runs a
// [Unit] on a fixed cadence, tags every cycle with a fresh correlation ID,
// measures it and reports exactly one outcome into a telemetry [Sink].
// The heartbeat increments a liveness counter per service name on its own
// ticker, so a failing or slow unit never silences it.
//
// # Quick Start
//
//	sup, err := pulse.New(
//	    work.Sequence(
//	        work.HTTPCall("ping", "https://api.example.com/ping"),
//	        work.Delay("calculate", 50*time.Millisecond),
//	    ),
//	    telemetry.NewLogSink(log),
//	    pulse.WithServiceName("WorkerServiceDemo"),
//	    pulse.WithMetricPrefix("WorkerService"),
//	)
//	if err != nil {
//	    log.Error("setup", slog.Any("error", err))
//	    os.Exit(1)
//	}
//
//	if err := sup.Run(context.Background()); err != nil {
//	    log.Error("shutdown", slog.Any("error", err))
//	}
//
// Run blocks until SIGINT or SIGTERM. Use Start and Stop to manage the
// lifecycle yourself.
//
// # Telemetry
//
// With metric prefix P each successful cycle emits event PExecutionSuccess
// and increments PSuccessCount. A failed cycle emits an exception record,
// increments PExecutionFailureCount and emits PExecutionFailure. Every
// heartbeat tick increments <service>Heartbeat for each configured service.
//
// Events carry ServiceName, Environment, CorrelationId, Timestamp,
// ExecutionDuration and ExecutionDurationMs. Counters see the correlation ID
// through the context. Sinks for logs, Prometheus, Sentry and Redis streams
// live in pkg/telemetry and can be combined with telemetry.Multi.
//
// # Shutdown
//
// Stop cancels both activities, waits for the heartbeat and then for the
// work loop. A cycle in progress finishes and reports before Stop returns.
// Stop is bounded by its context and safe to call more than once.
//
// # Health
//
// Supervisor.Healthcheck returns a check for pkg/health that fails when the
// supervisor is not running or the heartbeat is stale.
package pulse
