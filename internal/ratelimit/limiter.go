// Package ratelimit bounds message throughput per (sender, conversation).
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/pulseapp/pulse-engine/internal/cache"
)

const (
	// DefaultLimit is the message cap per window per conversation.
	DefaultLimit = 10
	// DefaultWindow is the fixed counting window.
	DefaultWindow = 60 * time.Second
)

// Limiter is a fixed-window counter on Redis. It is intentionally a window,
// not a sliding log: a burst straddling a window boundary can briefly send
// up to 2× the cap in 60s. Accepted approximation — the counter costs one
// INCR per message and needs no cleanup beyond TTL expiry.
type Limiter struct {
	cache  *cache.RedisCache
	limit  int
	window time.Duration
}

func New(c *cache.RedisCache) *Limiter {
	return &Limiter{cache: c, limit: DefaultLimit, window: DefaultWindow}
}

// NewWithConfig is used by tests to shrink the window.
func NewWithConfig(c *cache.RedisCache, limit int, window time.Duration) *Limiter {
	return &Limiter{cache: c, limit: limit, window: window}
}

// Allow reports whether the sender may post another message to the
// conversation in the current window. Absent or expired counter counts as 0.
func (l *Limiter) Allow(ctx context.Context, senderID, matchID uint64) (bool, error) {
	key := l.cache.KeyForRateLimit(senderID, matchID)
	val, err := l.cache.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if val == "" {
		return true, nil
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		// unparseable counter, treat as empty window
		return true, nil
	}
	return count < l.limit, nil
}

// Record counts one sent message, starting the window on the first hit.
func (l *Limiter) Record(ctx context.Context, senderID, matchID uint64) error {
	key := l.cache.KeyForRateLimit(senderID, matchID)
	n, err := l.cache.Incr(ctx, key)
	if err != nil {
		return err
	}
	if n == 1 {
		return l.cache.Expire(ctx, key, l.window)
	}
	return nil
}
