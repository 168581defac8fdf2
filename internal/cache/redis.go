package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pulseapp/pulse-engine/internal/config"
)

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

// Get returns the value, or "" without error on a cache miss.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

// Exists reports whether the key is present (and not expired).
func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.Client.Exists(ctx, key).Result()
	return n > 0, err
}

func (c *RedisCache) Del(ctx context.Context, keys ...string) error {
	return c.Client.Del(ctx, keys...).Err()
}

func (c *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	return c.Client.Incr(ctx, key).Result()
}

func (c *RedisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.Client.Expire(ctx, key, ttl).Err()
}

// ScanPrefix enumerates keys under a prefix with SCAN, never KEYS.
func (c *RedisCache) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := c.Client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

// --- key builders ---
// Key shapes are shared with the account service; change them in lockstep.

// KeyForBlock is one direction of a mutual block pair.
func (c *RedisCache) KeyForBlock(userID, targetID uint64) string {
	return fmt.Sprintf("blocked:%d:%d", userID, targetID)
}

// KeyForBlockPrefix is the namespace holding everyone userID has blocked.
func (c *RedisCache) KeyForBlockPrefix(userID uint64) string {
	return fmt.Sprintf("blocked:%d:", userID)
}

// KeyForRestricted marks a user excluded from discovery entirely.
func (c *RedisCache) KeyForRestricted(userID uint64) string {
	return fmt.Sprintf("user_restricted:%d", userID)
}

// KeyForFlagged marks a user down-ranked but still discoverable.
func (c *RedisCache) KeyForFlagged(userID uint64) string {
	return fmt.Sprintf("user_flagged:%d", userID)
}

// KeyForRateLimit is the fixed-window message counter per conversation.
func (c *RedisCache) KeyForRateLimit(senderID, matchID uint64) string {
	return fmt.Sprintf("rate_limit:%d:%d", senderID, matchID)
}

// KeyForSession is written by the auth service at login.
func (c *RedisCache) KeyForSession(userID uint64) string {
	return fmt.Sprintf("session:%d", userID)
}

// KeyForIncident is a panic-button incident record.
func (c *RedisCache) KeyForIncident(incidentID string) string {
	return fmt.Sprintf("emergency:%s", incidentID)
}
