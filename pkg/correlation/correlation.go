package correlation

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// LogKey is the slog attribute key used by Extractor.
const LogKey = "correlation_id"

type ctxKey struct{}

// New returns a fresh, time-ordered correlation identifier.
// Falls back to a random UUIDv4 if the v7 generator fails.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// WithID returns a copy of ctx carrying the correlation identifier.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the correlation identifier stored in ctx, if any.
func FromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Extractor returns a log context extractor that adds the correlation
// identifier under LogKey. The signature matches logger.ContextExtractor.
func Extractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id, ok := FromContext(ctx); ok {
			return slog.String(LogKey, id), true
		}
		return slog.Attr{}, false
	}
}
