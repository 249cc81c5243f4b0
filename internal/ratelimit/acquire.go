package ratelimit

import (
	"context"
	"time"
)

// Acquire blocks until a token is available for key, the context is
// cancelled, or the context's deadline passes, per spec.md §4.3 ("Acquire
// blocks for up to the caller's remaining timeout or fails with
// RateLimited"). It returns false (never blocking further) when no token
// became available before ctx was done.
func (l *Limiter) Acquire(ctx context.Context, key string) bool {
	if !l.config.Enabled {
		return true
	}
	if l.Allow(key) {
		return true
	}

	wait := l.WaitTime(key)
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return l.Allow(key)
	case <-ctx.Done():
		return false
	}
}

// Acquire on MultiLimiter blocks on the slowest constituent limiter.
func (m *MultiLimiter) Acquire(ctx context.Context, key string) bool {
	for _, l := range m.limiters {
		if !l.Acquire(ctx, key) {
			return false
		}
	}
	return true
}
