package infrastructure

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type contextKey struct{}

var traceIDKey contextKey

// GenerateTraceID returns a fresh UUID v4 used to correlate one run's logs, spans and manifest
func GenerateTraceID() string {
	return uuid.NewString()
}

// WithTraceID stores traceID on the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// GetTraceID returns the trace ID carried by ctx, or ""
func GetTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// ContextWithTraceID starts a new trace on ctx
func ContextWithTraceID(ctx context.Context) context.Context {
	return WithTraceID(ctx, GenerateTraceID())
}

// EnsureTraceID keeps an existing trace ID and starts one otherwise
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) == "" {
		return ContextWithTraceID(ctx)
	}
	return ctx
}

// WithComponent tags a logger with the pipeline component emitting it
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = GetLogger()
	}
	return logger.With("component", component)
}
