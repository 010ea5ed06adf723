// Package ratelimit implements fixed-window request admission over a
// shared counter store.
package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CounterStore is the consumer interface for per-caller admission
// counters. All mutations must be server-side atomic; the limiter never
// does client-side read-modify-write.
type CounterStore interface {
	Incr(ctx context.Context, callerID string) (int64, error)
	EnsureWindow(ctx context.Context, callerID string, window time.Duration) error
	Lifetime(ctx context.Context, callerID string) (time.Duration, error)
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Count      int64
	RetryAfter time.Duration // set when denied
}

// Limiter admits or denies requests per caller within a fixed window.
// Store failures fail open with a logged warning: a transient counter
// store outage must not take down the serving path.
type Limiter struct {
	store  CounterStore
	window time.Duration
	max    int64
	logger *zap.Logger
}

// New creates a fixed-window limiter allowing max requests per window.
func New(store CounterStore, window time.Duration, max int64, logger *zap.Logger) *Limiter {
	return &Limiter{store: store, window: window, max: max, logger: logger}
}

// CheckAndIncrement counts this request against the caller's window and
// reports whether it is admitted. The window TTL is applied with
// EXPIRE NX on every call: it starts fresh windows and also repairs
// counters left without expiry by store migrations or failovers, so a
// caller is never denied forever by a stuck counter.
func (l *Limiter) CheckAndIncrement(ctx context.Context, callerID string) Decision {
	count, err := l.store.Incr(ctx, callerID)
	if err != nil {
		l.logger.Warn("rate limit counter unavailable, failing open",
			zap.String("caller_id", callerID),
			zap.Error(err))
		return Decision{Allowed: true}
	}

	if err := l.store.EnsureWindow(ctx, callerID, l.window); err != nil {
		l.logger.Warn("rate limit window refresh failed, failing open",
			zap.String("caller_id", callerID),
			zap.Error(err))
		return Decision{Allowed: true, Count: count}
	}

	if count > l.max {
		retry := l.window
		if ttl, err := l.store.Lifetime(ctx, callerID); err == nil && ttl > 0 {
			retry = ttl
		}
		return Decision{Allowed: false, Count: count, RetryAfter: retry}
	}

	return Decision{Allowed: true, Count: count}
}
