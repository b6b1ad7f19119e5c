package middlewares

import (
	"net/http"

	"github.com/dmitrymomot/pulse/pkg/correlation"
)

// DefaultCorrelationHeaders are the headers checked (in order) for an existing ID.
var DefaultCorrelationHeaders = []string{"X-Correlation-ID", "X-Request-ID"}

// CorrelationConfig configures the correlation middleware.
type CorrelationConfig struct {
	Generator      func() string // ID generator function
	ResponseHeader string        // Response header name
	Headers        []string      // Headers to check for existing ID (in order)
}

// CorrelationOption configures CorrelationConfig.
type CorrelationOption func(*CorrelationConfig)

// WithCorrelationHeaders sets the headers to check for existing IDs.
func WithCorrelationHeaders(headers ...string) CorrelationOption {
	return func(cfg *CorrelationConfig) {
		cfg.Headers = headers
	}
}

// WithCorrelationGenerator sets a custom ID generator function.
func WithCorrelationGenerator(gen func() string) CorrelationOption {
	return func(cfg *CorrelationConfig) {
		cfg.Generator = gen
	}
}

// WithCorrelationResponseHeader sets the response header name.
func WithCorrelationResponseHeader(header string) CorrelationOption {
	return func(cfg *CorrelationConfig) {
		cfg.ResponseHeader = header
	}
}

// Correlation returns middleware that assigns a correlation ID to each request.
func Correlation(opts ...CorrelationOption) func(http.Handler) http.Handler {
	cfg := &CorrelationConfig{
		Headers:        DefaultCorrelationHeaders,
		Generator:      correlation.New,
		ResponseHeader: "X-Correlation-ID",
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// First match wins so upstream tracing IDs survive.
			var id string
			for _, header := range cfg.Headers {
				if v := r.Header.Get(header); v != "" {
					id = v
					break
				}
			}

			if id == "" {
				id = cfg.Generator()
			}

			w.Header().Set(cfg.ResponseHeader, id)
			next.ServeHTTP(w, r.WithContext(correlation.WithID(r.Context(), id)))
		})
	}
}
