// Package redis opens the go-redis client used by the Redis telemetry sink.
//
//	client, err := redis.Open(ctx, "redis://localhost:6379/0",
//	    redis.WithPoolSize(4),
//	    redis.WithRetry(5, time.Second),
//	)
//
// Open pings the server and retries with a linearly growing delay until the
// attempts are exhausted or ctx is cancelled. Healthcheck and Shutdown return
// closures for the readiness probe and the host shutdown sequence.
package redis
