// Package middlewares provides net/http middleware for the pulse ops server.
//
// # Correlation
//
// Correlation assigns a correlation ID to each request. It reuses an ID
// from the incoming headers when present, otherwise a new time-ordered ID
// is generated. The ID is stored with pkg/correlation, so loggers built with
// correlation.Extractor pick it up, and echoed in the response header.
//
//	r := chi.NewRouter()
//	r.Use(middlewares.Correlation())
//
// # Recover
//
// Recover turns a handler panic into a 500 response and logs the panic
// value with a stack trace.
//
//	r.Use(middlewares.Recover(log))
//
// Apply Correlation before Recover so that panic logs carry the ID.
package middlewares
