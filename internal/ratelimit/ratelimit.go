// Package ratelimit throttles outbound calls to upstream LLM/embedding
// providers with a Redis-backed fixed-window counter, shared across every
// process instance of this service. When Redis is not configured, Allow
// always permits the call so the service stays exercisable without it.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"kgraph/internal/config"
	"kgraph/internal/logging"
)

// Limiter caps calls per window for a named upstream (e.g. "embedding",
// "extraction").
type Limiter struct {
	client *redis.Client
	window time.Duration
}

// New builds a Limiter when Redis is configured; the returned Limiter is
// still safe to call Allow on when nil (always permits).
func New(cfg config.RedisConfig) *Limiter {
	if !cfg.Enabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logging.Log.WithError(err).Warn("redis ping failed, rate limiting disabled")
		return nil
	}
	return &Limiter{client: client, window: time.Minute}
}

// Allow increments the counter for upstream in the current window and
// reports whether the call is still under limit. A Redis failure fails open
// (permits the call) since the limiter is a protective throttle, not a
// correctness invariant.
func (l *Limiter) Allow(ctx context.Context, upstream string, limit int) bool {
	if l == nil || l.client == nil {
		return true
	}
	key := fmt.Sprintf("ratelimit:%s:%d", upstream, time.Now().Unix()/int64(l.window.Seconds()))
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		logging.Log.WithError(err).WithField("upstream", upstream).Warn("rate limiter incr failed, allowing call")
		return true
	}
	if count == 1 {
		l.client.Expire(ctx, key, l.window)
	}
	return int(count) <= limit
}

func (l *Limiter) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}
