package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// keyRateLimitPrefix namespaces per-API-key buckets.
	keyRateLimitPrefix = "myapi:rl:key:"
	// ipRateLimitPrefix namespaces per-IP buckets for the credential endpoints.
	ipRateLimitPrefix = "myapi:rl:ip:"
	// keyRateLimitTTL keeps idle per-key buckets around long enough to span
	// a full refill window on the free tier.
	keyRateLimitTTL = 2 * time.Minute
	// ipRateLimitTTL is short: IP buckets refill within seconds.
	ipRateLimitTTL = 10 * time.Second
	// ipHashSalt scopes hashed IPs to this rate limiter's keyspace.
	ipHashSalt = "myapi:rl:"
)

// RateLimitResult reports the outcome of a token-bucket check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// rateLimitScript implements a token bucket in Lua so refill and consumption
// happen in one atomic Redis round trip. Bucket state is a hash of
// {tk, ts}; time is millisecond-resolution to keep sub-second refills
// accurate for the per-second IP limits.
var rateLimitScript = redis.NewScript(`
	local bucket = KEYS[1]
	local rate_ms = tonumber(ARGV[1])
	local burst = tonumber(ARGV[2])
	local now_ms = tonumber(ARGV[3])
	local ttl_ms = tonumber(ARGV[4])

	local state = redis.call('HMGET', bucket, 'tk', 'ts')
	local tokens = tonumber(state[1]) or burst
	local stamp = tonumber(state[2]) or now_ms

	tokens = math.min(burst, tokens + (now_ms - stamp) * rate_ms)

	local allowed = 0
	local retry_ms = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_ms = math.ceil((1 - tokens) / rate_ms)
	end

	redis.call('HMSET', bucket, 'tk', tokens, 'ts', now_ms)
	redis.call('PEXPIRE', bucket, ttl_ms)

	return {allowed, retry_ms, math.floor(tokens)}
`)

// CheckAPIRateLimit runs the token bucket for an API key. A zero
// ratePerMinute means the unlimited tier: no Redis round trip at all.
func (c *Cache) CheckAPIRateLimit(ctx context.Context, keyID string, ratePerMinute, burst int) (*RateLimitResult, error) {
	if ratePerMinute == 0 {
		return allowAll(burst), nil
	}

	perMilli := float64(ratePerMinute) / float64(time.Minute.Milliseconds())
	return c.runBucket(ctx, keyRateLimitPrefix+keyID, perMilli, burst, keyRateLimitTTL)
}

// CheckIPRateLimit runs the token bucket for a client IP. The IP is hashed
// with a service-scoped salt so raw addresses never appear as Redis keys.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*RateLimitResult, error) {
	perMilli := float64(ratePerSecond) / float64(time.Second.Milliseconds())
	return c.runBucket(ctx, ipRateLimitPrefix+hashIP(ip), perMilli, burst, ipRateLimitTTL)
}

// runBucket executes the bucket script, failing open when Redis is down.
func (c *Cache) runBucket(ctx context.Context, bucket string, ratePerMilli float64, burst int, ttl time.Duration) (*RateLimitResult, error) {
	now := time.Now()

	res, err := rateLimitScript.Run(ctx, c.client,
		[]string{bucket},
		ratePerMilli, burst, now.UnixMilli(), ttl.Milliseconds(),
	).Int64Slice()
	if err != nil || len(res) != 3 {
		// Redis being down must not take the API down with it.
		return allowAll(burst), nil
	}

	allowed := res[0] == 1
	retryAfter := time.Duration(res[1]) * time.Millisecond
	if !allowed && retryAfter%time.Second != 0 {
		// Retry-After headers are whole seconds; round up.
		retryAfter = retryAfter.Truncate(time.Second) + time.Second
	}

	return &RateLimitResult{
		Allowed:    allowed,
		Remaining:  res[2],
		ResetAt:    now.Add(time.Duration(float64(time.Millisecond) / ratePerMilli)),
		RetryAfter: retryAfter,
	}, nil
}

// allowAll is the fail-open and unlimited-tier result.
func allowAll(burst int) *RateLimitResult {
	return &RateLimitResult{
		Allowed:   true,
		Remaining: int64(burst),
		ResetAt:   time.Now().Add(time.Minute),
	}
}

// hashIP derives the bucket key material for an IP: a salted, truncated
// SHA256. Deterministic, so one client always maps to one bucket.
func hashIP(ip string) string {
	sum := sha256.Sum256([]byte(ipHashSalt + ip))
	return hex.EncodeToString(sum[:8])
}
