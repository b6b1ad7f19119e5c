// Package telemetry defines the sink the supervisor reports to and ships the
// concrete sinks used in production and tests.
//
// A Sink accepts three kinds of telemetry: named events with string
// properties, counter increments, and structured exception records. Sink
// methods never return errors and never panic back into the caller; delivery
// problems are the sink's own concern and are logged.
//
// # Sinks
//
//   - NewLogSink writes every artifact as a structured log line.
//   - NewMemorySink records artifacts in memory for tests and dry runs.
//   - NewPrometheusSink turns counters, events and exceptions into Prometheus counters.
//   - NewSentrySink reports exceptions as Sentry issues and events as breadcrumbs.
//   - NewRedisSink appends events and exceptions to a capped Redis stream and
//     keeps counters as Redis keys.
//   - Multi fans out to several sinks.
//   - NewAsync decouples any sink from the caller with a bounded buffer.
//
// A typical production stack:
//
//	sink := telemetry.NewAsync(telemetry.Multi(
//	    telemetry.NewLogSink(log),
//	    telemetry.NewPrometheusSink(prometheus.DefaultRegisterer),
//	    telemetry.NewSentrySink(hub),
//	), telemetry.WithAsyncLogger(log))
//	defer sink.Close(ctx)
//
// # Correlation
//
// Sinks read the cycle correlation identifier from the context passed to each
// call (see package correlation). Event and exception records also carry it in
// their properties.
package telemetry
