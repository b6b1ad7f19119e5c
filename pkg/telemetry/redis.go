package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSink appends events and exceptions to a capped Redis stream and keeps
// counters as float keys. Stream entries have the fields kind, name,
// correlation_id, timestamp and properties (JSON); exception entries add
// message, type and stack.
type RedisSink struct {
	client  redis.UniversalClient
	logger  *slog.Logger
	stream  string
	prefix  string
	maxLen  int64
	timeout time.Duration
}

// NewRedisSink creates a sink writing through client.
func NewRedisSink(client redis.UniversalClient, opts ...RedisOption) *RedisSink {
	cfg := defaultRedisConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	return &RedisSink{
		client:  client,
		logger:  cfg.logger,
		stream:  cfg.stream,
		prefix:  cfg.prefix,
		maxLen:  cfg.maxLen,
		timeout: cfg.timeout,
	}
}

// Stream returns the stream key entries are appended to.
func (s *RedisSink) Stream() string { return s.stream }

// CounterKey returns the key holding the named counter.
func (s *RedisSink) CounterKey(name string) string { return s.prefix + name }

func (s *RedisSink) EmitEvent(ctx context.Context, name string, props map[string]string) {
	s.append(ctx, KindEvent, name, props, nil)
}

func (s *RedisSink) IncrementCounter(ctx context.Context, name string, delta float64) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.client.IncrByFloat(opCtx, s.CounterKey(name), delta).Err(); err != nil {
		s.logger.WarnContext(ctx, "redis telemetry counter failed",
			slog.String("counter", name),
			slog.Any("error", err),
		)
	}
}

func (s *RedisSink) EmitException(ctx context.Context, exc *StructuredError) {
	if exc == nil {
		return
	}
	s.append(ctx, KindException, exc.Type, exc.Properties, map[string]any{
		"message": exc.Message,
		"type":    exc.Type,
		"stack":   exc.StackTrace,
	})
}

func (s *RedisSink) append(ctx context.Context, kind, name string, props map[string]string, extra map[string]any) {
	encoded, err := json.Marshal(props)
	if err != nil {
		s.logger.WarnContext(ctx, "redis telemetry encode failed", slog.Any("error", err))
		return
	}

	id, _ := correlationID(ctx, props)
	values := map[string]any{
		"kind":           kind,
		"name":           name,
		"correlation_id": id,
		"timestamp":      strconv.FormatInt(time.Now().UTC().UnixMilli(), 10),
		"properties":     string(encoded),
	}
	for k, v := range extra {
		values[k] = v
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	err = s.client.XAdd(opCtx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		s.logger.WarnContext(ctx, "redis telemetry append failed",
			slog.String("kind", kind),
			slog.String("name", name),
			slog.Any("error", err),
		)
	}
}

// opContext keeps ctx values but replaces cancellation with the sink timeout,
// so a cancelled cycle still gets its telemetry written.
func (s *RedisSink) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
}
