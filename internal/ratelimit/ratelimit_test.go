package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLimiter_Allow(t *testing.T) {
	_, client := setupTestRedis(t)
	limiter := NewRedisLimiter(client, "test", 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, allowed)

	// Other clients have their own budget.
	allowed, err = limiter.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisLimiter_ScopesAreIndependent(t *testing.T) {
	_, client := setupTestRedis(t)
	global := NewRedisLimiter(client, "global", 1, time.Minute)
	create := NewRedisLimiter(client, "alert_create", 1, time.Minute)
	ctx := context.Background()

	allowed, err := global.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = create.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = global.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestMiddleware_Blocks(t *testing.T) {
	_, client := setupTestRedis(t)
	limiter := NewRedisLimiter(client, "test", 1, time.Minute)

	handler := Middleware(limiter, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "1.2.3.4:5678"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestMiddleware_FailsOpen(t *testing.T) {
	mr, client := setupTestRedis(t)
	limiter := NewRedisLimiter(client, "test", 1, time.Minute)

	mr.Close()

	handler := Middleware(limiter, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "1.2.3.4:5678"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNoopLimiter(t *testing.T) {
	allowed, err := NoopLimiter{}.Allow(context.Background(), "anyone")
	require.NoError(t, err)
	assert.True(t, allowed)
}
