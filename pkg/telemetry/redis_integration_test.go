//go:build integration

package telemetry_test

import (
	"context"
	"errors"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulse/pkg/correlation"
	"github.com/dmitrymomot/pulse/pkg/redis"
	"github.com/dmitrymomot/pulse/pkg/telemetry"
)

const testRedisURL = "redis://localhost:6379/0"

func newTestRedisClient(t *testing.T) goredis.UniversalClient {
	t.Helper()

	client, err := redis.Open(context.Background(), testRedisURL, redis.WithRetry(1, 0))
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisSink_Integration(t *testing.T) {
	client := newTestRedisClient(t)
	ctx := context.Background()

	stream := "pulse:test:" + correlation.New()
	prefix := stream + ":counter:"
	t.Cleanup(func() {
		client.Del(ctx, stream, prefix+"SuccessCount")
	})

	sink := telemetry.NewRedisSink(client, telemetry.WithStream(stream), telemetry.WithCounterPrefix(prefix))
	cctx := correlation.WithID(ctx, "cid-r")

	sink.EmitEvent(cctx, "ExecutionSuccess", map[string]string{"ServiceName": "demo"})
	sink.IncrementCounter(cctx, "SuccessCount", 1)
	sink.IncrementCounter(cctx, "SuccessCount", 1)
	sink.EmitException(cctx, telemetry.NewStructuredError(errors.New("boom"), nil))

	total, err := client.Get(ctx, sink.CounterKey("SuccessCount")).Float64()
	require.NoError(t, err)
	assert.InDelta(t, 2, total, 1e-9)

	entries, err := client.XRange(ctx, sink.Stream(), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, telemetry.KindEvent, entries[0].Values["kind"])
	assert.Equal(t, "cid-r", entries[0].Values["correlation_id"])
	assert.Equal(t, telemetry.KindException, entries[1].Values["kind"])
	assert.Equal(t, "boom", entries[1].Values["message"])
}
