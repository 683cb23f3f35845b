// Package worker contains the queue job processors for campaign dispatch
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DispatchGuard is the idempotency token for campaign dispatch. The first
// job delivery to acquire the campaign's key owns the dispatch; redeliveries
// of the same job re-enter, deliveries of a duplicate job are rejected.
type DispatchGuard interface {
	Acquire(ctx context.Context, key, token string) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisDispatchGuard implements DispatchGuard with SETNX semantics
type RedisDispatchGuard struct {
	rc     *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisDispatchGuard creates a new dispatch guard. The TTL bounds how
// long a crashed worker blocks re-dispatch of its campaign.
func NewRedisDispatchGuard(rc *redis.Client, prefix string, ttl time.Duration) *RedisDispatchGuard {
	return &RedisDispatchGuard{rc: rc, prefix: prefix, ttl: ttl}
}

func (g *RedisDispatchGuard) key(key string) string {
	return g.prefix + "dispatch:" + key
}

// Acquire takes the key for the given token. Re-acquiring with the token
// that already holds the key succeeds, so a redelivered job can resume.
func (g *RedisDispatchGuard) Acquire(ctx context.Context, key, token string) (bool, error) {
	ok, err := g.rc.SetNX(ctx, g.key(key), token, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire dispatch guard %s: %w", key, err)
	}
	if ok {
		return true, nil
	}

	holder, err := g.rc.Get(ctx, g.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Holder expired between SETNX and GET; try once more
			return g.rc.SetNX(ctx, g.key(key), token, g.ttl).Result()
		}
		return false, fmt.Errorf("failed to read dispatch guard %s: %w", key, err)
	}
	return holder == token, nil
}

// Release drops the key so the campaign can be dispatched again
func (g *RedisDispatchGuard) Release(ctx context.Context, key string) error {
	return g.rc.Del(ctx, g.key(key)).Err()
}
