// Package correlation generates cycle correlation identifiers and carries them
// through context.
//
// Every work cycle gets a fresh identifier. The identifier is attached to the
// cycle's context so that logs, telemetry events, counter increments and
// exception records produced by that cycle can be cross-referenced:
//
//	id := correlation.New()
//	ctx = correlation.WithID(ctx, id)
//
//	// later, anywhere down the call chain
//	if id, ok := correlation.FromContext(ctx); ok {
//	    props["CorrelationId"] = id
//	}
//
// Identifiers are UUIDv7 strings, so they are unique and sort by creation time.
//
// # Logging
//
// Extractor returns a logger.ContextExtractor that adds a correlation_id
// attribute to every log record written with a cycle context:
//
//	log := logger.New(correlation.Extractor())
package correlation
