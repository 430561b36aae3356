package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/haven/pkg/observability"
)

// DistributedRateLimiter implements a fixed-window limiter in Redis so that
// limits are shared across instances
type DistributedRateLimiter struct {
	redis   *redis.Client
	config  *RateLimitConfig
	prefix  string
	metrics *observability.Metrics
}

// NewDistributedRateLimiter creates a new Redis-backed rate limiter. metrics may be nil.
func NewDistributedRateLimiter(redisClient *redis.Client, config *RateLimitConfig, prefix string, metrics *observability.Metrics) *DistributedRateLimiter {
	config = normalizeRateLimitConfig(config)
	if prefix == "" {
		prefix = "haven:ratelimit"
	}

	return &DistributedRateLimiter{
		redis:   redisClient,
		config:  config,
		prefix:  prefix,
		metrics: metrics,
	}
}

func (rl *DistributedRateLimiter) key(key string) string {
	return fmt.Sprintf("%s:%s", rl.prefix, key)
}

// Allow counts a request in the current window. On Redis errors the decision
// allows the request and the error is returned.
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := rl.key(key)

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.TTL(ctx, redisKey)
	_, err := pipe.Exec(ctx)
	rl.metrics.RecordRedisCommand("incr", err)
	if err != nil {
		return Decision{Allowed: true, Limit: rl.config.RequestsPerWindow}, fmt.Errorf("redis error: %w", err)
	}

	// the window starts with the first request; a key without expiry gets one
	window := ttl.Val()
	if window < 0 {
		err := rl.redis.Expire(ctx, redisKey, rl.config.WindowDuration).Err()
		rl.metrics.RecordRedisCommand("expire", err)
		if err != nil {
			return Decision{Allowed: true, Limit: rl.config.RequestsPerWindow}, fmt.Errorf("redis error: %w", err)
		}
		window = rl.config.WindowDuration
	}

	count := int(incr.Val())
	d := Decision{
		Allowed: count <= rl.config.RequestsPerWindow,
		Limit:   rl.config.RequestsPerWindow,
		Reset:   time.Now().Add(window),
	}
	if d.Allowed {
		d.Remaining = rl.config.RequestsPerWindow - count
	} else {
		d.RetryAfter = window
	}
	return d, nil
}
