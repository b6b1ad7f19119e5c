package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrymomot/pulse/pkg/correlation"
	"github.com/dmitrymomot/pulse/pkg/health"
	"github.com/dmitrymomot/pulse/pkg/logger"
	"github.com/dmitrymomot/pulse/pkg/redis"
	"github.com/dmitrymomot/pulse/pkg/telemetry"
	"github.com/dmitrymomot/pulse/pkg/work"
)

// stack is everything the run command builds before starting the supervisor.
type stack struct {
	logger   *slog.Logger
	registry *prometheus.Registry
	sink     *telemetry.Async
	unit     work.Unit
	checks   health.Checks
	closers  []func(context.Context) error
}

// close releases resources in reverse order of acquisition.
func (s *stack) close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildStack(ctx context.Context, cfg Config, out io.Writer) (*stack, error) {
	if out == nil {
		out = os.Stdout
	}
	s := &stack{checks: health.Checks{}}

	hub, err := telemetry.NewSentryHub(telemetry.SentryConfig{
		DSN:         cfg.Sentry.DSN,
		Environment: cfg.Service.Environment,
		Release:     cfg.Sentry.Release,
		SampleRate:  cfg.Sentry.SampleRate,
	})
	if err != nil {
		return nil, err
	}

	s.logger = logger.NewWithSentry(logger.Config{
		Output:    out,
		Format:    cfg.Log.Format,
		Component: cfg.Service.Name,
		Level:     logger.ParseLevel(cfg.Log.Level),
	}, hub, correlation.Extractor())

	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sinks := []telemetry.Sink{
		telemetry.NewLogSink(s.logger),
		telemetry.NewPrometheusSink(s.registry, telemetry.WithPrometheusLogger(s.logger)),
	}

	if hub != nil {
		sentrySink := telemetry.NewSentrySink(hub)
		sinks = append(sinks, sentrySink)
		s.closers = append(s.closers, func(context.Context) error {
			if !sentrySink.Flush(cfg.Sentry.FlushTimeout) {
				s.logger.Warn("sentry flush timed out")
			}
			return nil
		})
	}

	if cfg.Redis.URL != "" {
		client, err := redis.Open(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, errors.Join(err, s.close(ctx))
		}
		sinks = append(sinks, telemetry.NewRedisSink(client,
			telemetry.WithStream(cfg.Redis.Stream),
			telemetry.WithCounterPrefix(cfg.Redis.CounterKey),
			telemetry.WithStreamMaxLen(cfg.Redis.StreamMaxLen),
			telemetry.WithRedisLogger(s.logger),
		))
		s.checks["redis"] = redis.Healthcheck(client)
		s.closers = append(s.closers, redis.Shutdown(client))
	}

	// The async sink drains into all others, so it closes first.
	s.sink = telemetry.NewAsync(
		telemetry.MultiWithLogger(s.logger, sinks...),
		telemetry.WithBufferSize(cfg.Ops.BufferSize),
		telemetry.WithAsyncLogger(s.logger),
	)
	s.closers = append(s.closers, func(ctx context.Context) error {
		if err := s.sink.Close(ctx); err != nil {
			return fmt.Errorf("close telemetry: %w", err)
		}
		if n := s.sink.Dropped(); n > 0 {
			s.logger.Warn("telemetry dropped", slog.Uint64("count", n))
		}
		return nil
	})

	if s.unit, err = buildUnit(cfg.Work); err != nil {
		return nil, errors.Join(err, s.close(ctx))
	}
	return s, nil
}

// buildUnit assembles the work unit: an optional dependency call, then the
// calculation step.
func buildUnit(cfg WorkConfig) (work.Unit, error) {
	var steps []work.Step

	if cfg.DependencyURL != "" {
		opts := []work.HTTPOption{work.WithTimeout(cfg.DependencyTimeout)}
		if cfg.OAuth2.Enabled() {
			opts = append(opts, work.WithOAuth2ClientCredentials(
				cfg.OAuth2.TokenURL, cfg.OAuth2.ClientID, cfg.OAuth2.ClientSecret, cfg.OAuth2.Scopes...,
			))
		}
		steps = append(steps, work.HTTPCall("dependency", cfg.DependencyURL, opts...))
	}

	if cfg.CalculationDelay > 0 {
		steps = append(steps, work.Delay("calculation", cfg.CalculationDelay))
	}

	if len(steps) == 0 {
		return nil, work.ErrNoSteps
	}
	return work.Sequence(steps...), nil
}
