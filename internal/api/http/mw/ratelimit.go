package mw

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type RateBucket struct {
	RefillPerSec int           // tokens added every second
	Burst        int           // max bucket size
	TTL          time.Duration // how long an idle key lives
}

// RateLimitMiddleware throttles callers per source IP with a redis
// token bucket. If redis is unavailable the request is allowed, the
// limiter must never take the API down with it.
type RateLimitMiddleware struct {
	rdb    *redis.Client
	bucket RateBucket
}

func NewRateLimit(rdb *redis.Client, bucket RateBucket) *RateLimitMiddleware {
	// sane defaults
	if bucket.TTL == 0 {
		bucket.TTL = 2 * time.Minute
	}
	if bucket.RefillPerSec <= 0 {
		bucket.RefillPerSec = 10
	}
	if bucket.Burst <= 0 {
		bucket.Burst = 20
	}
	return &RateLimitMiddleware{rdb: rdb, bucket: bucket}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if ip == "" {
			ip = "unknown"
		}

		ok, _ := m.allow(r.Context(), "rl:ip:"+ip, time.Now())
		if !ok {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// --- redis token-bucket (Lua) for atomic and one query ---
var luaTokenBucket = redis.NewScript(`
-- KEYS[1] = key
-- ARGV[1] = now_ms
-- ARGV[2] = refill_per_sec (integer)
-- ARGV[3] = burst (integer)
-- ARGV[4] = ttl_seconds
local key   = KEYS[1]
local now   = tonumber(ARGV[1])
local rate  = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])
local ttl   = tonumber(ARGV[4])

local last_ms = tonumber(redis.call('HGET', key, 'ts') or now)
local tokens  = tonumber(redis.call('HGET', key, 'tok') or burst)

if now > last_ms then
  local delta = (now - last_ms) / 1000.0
  tokens = math.min(burst, tokens + (delta * rate))
end

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call('HSET', key, 'tok', tokens, 'ts', now)
redis.call('EXPIRE', key, ttl)

return {allowed, tokens}
`)

func clientIP(r *http.Request) string {
	// first hop among the proxy IPs
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return xrip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (m *RateLimitMiddleware) allow(ctx context.Context, key string, now time.Time) (bool, float64) {
	ttl := int(m.bucket.TTL.Seconds())
	if ttl <= 0 {
		ttl = 120
	}

	res, err := luaTokenBucket.Run(ctx, m.rdb, []string{key},
		now.UnixMilli(),
		m.bucket.RefillPerSec,
		m.bucket.Burst,
		ttl,
	).Result()
	if err != nil { // redis failure must not reject traffic
		return true, 0
	}

	arr, ok := res.([]any)
	if !ok || len(arr) < 2 {
		return true, 0
	}

	allowed := arr[0].(int64) == 1
	tokensLeft, _ := arr[1].(float64)

	return allowed, tokensLeft
}
