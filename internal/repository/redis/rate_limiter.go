package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"costguardian/pkg/errors"
)

// tokenBucketScript refills and takes one token atomically.
// KEYS[1] bucket key; ARGV rate (tokens/s), burst, now (unix seconds), ttl (s).
// Returns 1 when a token was taken.
const tokenBucketScript = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local data = redis.call('HMGET', key, 'tokens', 'last_update')
local tokens = tonumber(data[1])
local last_update = tonumber(data[2])

if not tokens then
    tokens = burst
    last_update = now
end

tokens = math.min(burst, tokens + math.max(0, now - last_update) * rate)

local allowed = 0
if tokens >= 1.0 then
    tokens = tokens - 1.0
    allowed = 1
end

redis.call('HSET', key, 'tokens', tokens, 'last_update', now)
redis.call('EXPIRE', key, ttl)
return allowed
`

// RateLimiter is a token bucket per client shared by every replica
type RateLimiter struct {
	client    *redis.Client
	script    *redis.Script
	rate      float64
	burst     int
	keyPrefix string
	ttl       time.Duration
	now       func() time.Time
}

// NewRateLimiter creates a Redis token bucket allowing rps requests per second with the given burst
func NewRateLimiter(client *redis.Client, rps float64, burst int) (*RateLimiter, error) {
	if rps <= 0 {
		return nil, errors.NewValidationError("rps", "must be positive", rps)
	}
	if burst <= 0 {
		burst = 1
	}

	// Idle buckets expire once they would have refilled completely
	ttl := max(time.Duration(float64(burst)/rps*float64(time.Second)), time.Minute)

	return &RateLimiter{
		client:    client,
		script:    redis.NewScript(tokenBucketScript),
		rate:      rps,
		burst:     burst,
		keyPrefix: "ratelimit:",
		ttl:       ttl,
		now:       time.Now,
	}, nil
}

// Allow takes a token from the client's bucket
func (l *RateLimiter) Allow(ctx context.Context, client string) (bool, error) {
	now := float64(l.now().UnixNano()) / float64(time.Second)

	result, err := l.script.Run(ctx, l.client,
		[]string{l.keyPrefix + client},
		l.rate, l.burst, now, int(l.ttl.Seconds()),
	).Int()
	if err != nil {
		return false, errors.Mark(errors.ErrUnavailable, err, "token bucket script failed")
	}
	return result == 1, nil
}

// Reset clears the client's bucket
func (l *RateLimiter) Reset(ctx context.Context, client string) error {
	return l.client.Del(ctx, l.keyPrefix+client).Err()
}
