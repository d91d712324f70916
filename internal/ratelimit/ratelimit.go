// Package ratelimit implements sliding-window request limiting backed by
// Redis, shared across every instance of the HTTP adapter.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fleetwatch/fleetwatch/internal/httputil"
	"github.com/fleetwatch/fleetwatch/internal/metrics"
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type redisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	scope  string
}

// slidingWindowScript counts and records requests atomically per key.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, 0, window_start)

local current = redis.call('ZCARD', key)

if current < limit then
  redis.call('ZADD', key, now, now)
  redis.call('EXPIRE', key, ttl)
  return 1
else
  return 0
end
`)

// NewRedisLimiter builds a limiter allowing limit requests per window,
// labeled with scope for metrics and key namespacing.
func NewRedisLimiter(client *redis.Client, scope string, limit int, window time.Duration) Limiter {
	return &redisLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		scope:  scope,
	}
}

// Allow implements the sliding window check.
func (r *redisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now().UnixNano()
	windowStart := now - r.window.Nanoseconds()
	ttl := int64(r.window.Seconds()) + 1

	fullKey := "ratelimit:" + r.scope + ":" + key
	result, err := slidingWindowScript.Run(ctx, r.client, []string{fullKey}, now, windowStart, r.limit, ttl).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	allowed := result == 1
	if !allowed {
		metrics.RateLimitHits.WithLabelValues(r.scope).Inc()
	}
	return allowed, nil
}

// NoopLimiter always allows requests (testing or disabled limiting).
type NoopLimiter struct{}

func (NoopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

// Middleware applies the limiter per client IP. A failed limiter check
// fails open: the request proceeds and the error is logged.
func Middleware(limiter Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.Allow(r.Context(), clientIP(r))
			if err != nil {
				log.Warn("rate limit check failed, allowing request", slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				httputil.WriteError(w, http.StatusTooManyRequests, "Too many requests, please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
