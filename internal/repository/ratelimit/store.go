// Package ratelimit is the shared counter-store collaborator for request
// admission. Counters live in Redis so every worker process sees the
// same window; all mutations are server-side atomic.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/snipara/contextd/internal/db"
)

// store is the consumer interface for counter operations (ISP).
type store interface {
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// Store provides per-caller admission counters.
type Store struct {
	store     store
	keyPrefix string
}

// New creates a rate-limit counter store.
func New(s store, keyPrefix string) *Store {
	return &Store{store: s, keyPrefix: keyPrefix}
}

func (s *Store) key(callerID string) string {
	return s.keyPrefix + "rl:" + callerID
}

// Incr atomically increments the caller's counter and returns the new count.
func (s *Store) Incr(ctx context.Context, callerID string) (int64, error) {
	n, err := s.store.IncrBy(ctx, s.key(callerID), 1)
	if err != nil {
		return 0, fmt.Errorf("incr counter %s: %w", callerID, err)
	}
	return n, nil
}

// EnsureWindow sets the window TTL only when the counter has no expiry
// (EXPIRE NX). This both starts fresh windows and repairs counters left
// without expiry by store migrations or failovers.
func (s *Store) EnsureWindow(ctx context.Context, callerID string, window time.Duration) error {
	if err := s.store.Expire(ctx, s.key(callerID), window, true); err != nil {
		return fmt.Errorf("ensure window %s: %w", callerID, err)
	}
	return nil
}

// Lifetime returns the counter's remaining TTL. Zero means the counter
// exists without expiry; db.ErrKeyNotFound means no counter.
func (s *Store) Lifetime(ctx context.Context, callerID string) (time.Duration, error) {
	ttl, err := s.store.TTL(ctx, s.key(callerID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, db.ErrKeyNotFound
		}
		return 0, fmt.Errorf("counter lifetime %s: %w", callerID, err)
	}
	return ttl, nil
}
