package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// redisCounter is the subset of *redis.Client used by RedisLimiter.
type redisCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisLimiter is a fixed-window Limiter shared by every replica. Each key
// gets Limit requests per Window. Redis errors fail open.
type RedisLimiter struct {
	Client redisCounter
	Limit  int
	Window time.Duration
	Prefix string
	Now    func() time.Time
}

// NewRedisLimiter allows limit requests per minute per key.
func NewRedisLimiter(client *redis.Client, limit int) *RedisLimiter {
	return &RedisLimiter{Client: client, Limit: limit, Window: time.Minute, Prefix: "botbuilder:rl:"}
}

// Allow implements Limiter.
func (rl *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	now := time.Now()
	if rl.Now != nil {
		now = rl.Now()
	}
	window := rl.Window
	if window <= 0 {
		window = time.Minute
	}
	slot := now.UnixNano() / int64(window)
	k := rl.Prefix + key + ":" + strconv.FormatInt(slot, 10)

	n, err := rl.Client.Incr(ctx, k).Result()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("rate limit: redis unavailable, allowing request")
		return true, 0
	}
	if n == 1 {
		if err := rl.Client.Expire(ctx, k, window).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("rate limit: expire failed")
		}
	}
	if n > int64(rl.Limit) {
		end := time.Unix(0, (slot+1)*int64(window))
		return false, end.Sub(now)
	}
	return true, 0
}
