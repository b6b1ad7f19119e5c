// Package health provides liveness and readiness HTTP handlers for the
// supervisor host.
//
// Liveness answers OK while the process runs. Readiness runs every registered
// check in parallel with a shared timeout and answers 503 when any fails:
//
//	mux.Get("/health/live", health.LivenessHandler())
//	mux.Get("/health/ready", health.ReadinessHandler(health.Checks{
//	    "heartbeat": supervisor.Healthcheck(),
//	    "redis":     redis.Healthcheck(client),
//	}))
//
// Responses are plain text unless the client asks for JSON with an
// Accept: application/json header or ?format=json.
package health
