package logger

import (
	"context"

	"go.uber.org/zap"
)

// ctxKey is the private context key for the request-scoped logger.
type ctxKey struct{}

// ContextWithLogger returns a child context carrying the request-scoped
// logger. The wide-event middleware installs one per request, enriched
// with the request id; transport handlers retrieve it with FromContext.
func ContextWithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored by ContextWithLogger. A context
// without one yields zap.NewNop, so call sites never nil-check.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}
