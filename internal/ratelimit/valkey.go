package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"
)

const (
	keyPrefix      = "taskhub:rate_limit:"
	defaultTimeout = 2 * time.Second
	bucketTTL      = 300
)

// tokenBucketScript atomically refills, checks and consumes one token.
// Returns {allowed, remaining, ms_until_next_token}
const tokenBucketScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local rps = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local current = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(current[1]) or burst
local last_refill = tonumber(current[2]) or now

local elapsed = math.max(0, now - last_refill)
tokens = math.min(burst, tokens + (elapsed * rps / 1000))

local allowed = 0
local wait_ms = 0
if tokens >= 1 then
    allowed = 1
    tokens = tokens - 1
else
    wait_ms = math.ceil((1 - tokens) * 1000 / rps)
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'last_refill', now)
redis.call('EXPIRE', key, ttl)

return {allowed, math.floor(tokens), wait_ms}
`

// ValkeyLimiter shares token buckets between API instances through valkey
type ValkeyLimiter struct {
	client valkey.Client
	rps    float64
	burst  int
	now    func() time.Time
}

// NewValkeyLimiter creates a limiter refilling rps tokens per second up to burst
func NewValkeyLimiter(client valkey.Client, rps float64, burst int) *ValkeyLimiter {
	return &ValkeyLimiter{
		client: client,
		rps:    rps,
		burst:  burst,
		now:    time.Now,
	}
}

// Allow implements Limiter
func (l *ValkeyLimiter) Allow(ctx context.Context, key string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cmd := l.client.B().Eval().
		Script(tokenBucketScript).
		Numkeys(1).
		Key(keyPrefix + key).
		Arg(strconv.FormatInt(l.now().UnixMilli(), 10)).
		Arg(strconv.FormatFloat(l.rps, 'f', -1, 64)).
		Arg(strconv.Itoa(l.burst)).
		Arg(strconv.Itoa(bucketTTL)).
		Build()

	values, err := l.client.Do(ctx, cmd).AsIntSlice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(values) < 3 {
		return Result{}, fmt.Errorf("invalid rate limit result: expected 3 values, got %d", len(values))
	}

	result := Result{
		Allowed:   values[0] == 1,
		Remaining: int(values[1]),
	}
	if !result.Allowed {
		result.RetryAfter = time.Duration(math.Max(float64(values[2]), 1)) * time.Millisecond
	}

	return result, nil
}
