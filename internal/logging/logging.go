// Package logging builds the process-wide structured logger. Modeled on
// Pay-Chain's pkg/logger: a zap logger configured once at startup and passed
// down via constructors, never read as a package-level global from deep call
// stacks.
package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

// New builds a *zap.Logger. Production builds use the JSON encoder;
// anything else uses the human-readable development encoder.
func New(env string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	return cfg.Build(zap.AddCallerSkip(0))
}

// WithEvent returns a child logger carrying the webhook event's identifying
// fields, the way Pay-Chain's WithContext carries request/correlation ids.
func WithEvent(logger *zap.Logger, eventID, eventType string) *zap.Logger {
	return logger.With(zap.String("event_id", eventID), zap.String("event_type", eventType))
}

// IntoContext stashes a logger in a context so deep helpers that only carry a
// context.Context (provider fetch calls, background jobs) can still log with
// the right fields attached.
func IntoContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext retrieves the logger stashed by IntoContext, falling back to
// zap's no-op logger so callers never need a nil check.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}
