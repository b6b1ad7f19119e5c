package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultNamespace = "pulse"

// PrometheusSink exposes telemetry as Prometheus counters.
//
// Each counter name becomes its own metric, converted to snake case and
// suffixed with _total ("WorkerServiceSuccessCount" becomes
// "pulse_worker_service_success_count_total"). Events and exceptions are
// counted in pulse_events_total{event} and pulse_exceptions_total{type}.
// Correlation identifiers are never used as labels.
type PrometheusSink struct {
	reg        prometheus.Registerer
	logger     *slog.Logger
	events     *prometheus.CounterVec
	exceptions *prometheus.CounterVec
	counters   map[string]prometheus.Counter
	namespace  string
	mu         sync.Mutex
}

// NewPrometheusSink registers the event and exception vectors on reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusSink(reg prometheus.Registerer, opts ...PrometheusOption) *PrometheusSink {
	cfg := &promConfig{namespace: defaultNamespace}
	for _, opt := range opts {
		opt(cfg)
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	s := &PrometheusSink{
		reg:       reg,
		logger:    cfg.logger,
		counters:  make(map[string]prometheus.Counter),
		namespace: cfg.namespace,
	}

	s.events = registerCollector(reg, cfg.logger, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.namespace,
		Name:      "events_total",
		Help:      "Telemetry events emitted, by event name.",
	}, []string{"event"}))

	s.exceptions = registerCollector(reg, cfg.logger, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.namespace,
		Name:      "exceptions_total",
		Help:      "Exception records emitted, by error type.",
	}, []string{"type"}))

	return s
}

func (s *PrometheusSink) EmitEvent(_ context.Context, name string, _ map[string]string) {
	s.events.WithLabelValues(name).Inc()
}

func (s *PrometheusSink) IncrementCounter(ctx context.Context, name string, delta float64) {
	if delta < 0 {
		s.logger.WarnContext(ctx, "prometheus counters cannot decrease, ignoring",
			slog.String("counter", name),
			slog.Float64("delta", delta),
		)
		return
	}
	s.counter(name).Add(delta)
}

func (s *PrometheusSink) EmitException(_ context.Context, exc *StructuredError) {
	if exc == nil {
		return
	}
	s.exceptions.WithLabelValues(exc.Type).Inc()
}

func (s *PrometheusSink) counter(name string) prometheus.Counter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.counters[name]; ok {
		return c
	}

	c := registerCollector(s.reg, s.logger, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   s.namespace,
		Name:        MetricName(name),
		Help:        "Telemetry counter.",
		ConstLabels: prometheus.Labels{"counter": name},
	}))
	s.counters[name] = c
	return c
}

// registerCollector registers c, reusing an identical collector that is
// already registered. Any other registration error is logged; the returned
// collector then still counts but is not exported.
func registerCollector[C prometheus.Collector](reg prometheus.Registerer, logger *slog.Logger, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	logger.Warn("prometheus: collector not registered", slog.Any("error", err))
	return c
}

// MetricName converts a telemetry counter name into a Prometheus metric name.
func MetricName(name string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range name {
		switch {
		case unicode.IsUpper(r):
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevLower = true
		default:
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
			prevLower = false
		}
	}

	out := strings.Trim(b.String(), "_")
	if out == "" {
		out = "counter"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	if !strings.HasSuffix(out, "_total") {
		out += "_total"
	}
	return out
}

type promConfig struct {
	logger    *slog.Logger
	namespace string
}

// PrometheusOption configures a PrometheusSink.
type PrometheusOption func(*promConfig)

// WithNamespace sets the metric namespace. Default: "pulse".
func WithNamespace(ns string) PrometheusOption {
	return func(c *promConfig) {
		if ns != "" {
			c.namespace = ns
		}
	}
}

// WithPrometheusLogger sets the logger for ignored increments.
func WithPrometheusLogger(l *slog.Logger) PrometheusOption {
	return func(c *promConfig) {
		if l != nil {
			c.logger = l
		}
	}
}
