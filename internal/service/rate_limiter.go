package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// slidingWindow trims expired attempts from a per-key sorted set, then
// either records the new attempt or reports when the oldest one leaves
// the window. Runs atomically on the Redis side. Times are unix millis.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

if redis.call('ZCARD', key) >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    if #oldest >= 2 then
        return {0, tonumber(oldest[2]) + window}
    end
    return {0, now + window}
end

redis.call('ZADD', key, now, now .. '-' .. math.random())
redis.call('PEXPIRE', key, window + 10000)
return {1, now + window}
`)

// RedisLimiter is the sliding-window throttle backend used when the
// broker runs with more than one replica; the window is shared through
// Redis instead of process memory. A Redis fault denies the attempt, a
// broken throttle must not become an open one.
type RedisLimiter struct {
	client *redis.Client
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client}
}

func (rl *RedisLimiter) CheckLimit(
	ctx context.Context,
	key string,
	limit int,
	window time.Duration,
) (allowed bool, resetAt time.Time) {
	result, err := slidingWindow.Run(
		ctx,
		rl.client,
		[]string{"ratelimit:" + key},
		time.Now().UnixMilli(),
		window.Milliseconds(),
		limit,
	).Int64Slice()

	if err != nil || len(result) != 2 {
		log.Warn().
			Err(err).
			Str("key", key).
			Msg("rate limit check failed, denying attempt")
		return false, time.Now().Add(window)
	}

	return result[0] == 1, time.UnixMilli(result[1])
}
