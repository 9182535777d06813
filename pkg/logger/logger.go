package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

func NewLogger() (*zap.Logger, error) {
	// Production logger by default.
	return zap.NewProduction()
}

// NewDevelopmentLogger is used when FINFLOW_ENV=development.
func NewDevelopmentLogger() (*zap.Logger, error) {
	return zap.NewDevelopment()
}

// New picks the logger flavour for the given environment.
func New(env string) (*zap.Logger, error) {
	if env == "development" {
		return NewDevelopmentLogger()
	}
	return NewLogger()
}

func WithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request or job scoped logger, falling back to the global one.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.L()
}
