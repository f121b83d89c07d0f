package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-sneakers/internal/common"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestSlidingWindowAllow(t *testing.T) {
	mr, client := newRedis(t)
	now := time.Unix(1_700_000_000, 0)
	limiter := SlidingWindow{Client: client, Prefix: "test:", Now: func() time.Time { return now }}
	ctx := context.Background()
	window := 2 * time.Second

	for i := 0; i < 2; i++ {
		d, err := limiter.Allow(ctx, "key", window, 2)
		require.NoError(t, err)
		require.True(t, d.Allowed)
		require.Equal(t, 2-(i+1), d.Remaining)
	}

	d, err := limiter.Allow(ctx, "key", window, 2)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, 0, d.Remaining)
	require.Equal(t, now.Add(window), d.ResetAt)

	members, err := mr.ZMembers("test:key")
	require.NoError(t, err)
	require.Len(t, members, 2, "rejected events are not recorded")

	now = now.Add(window + time.Millisecond)
	d, err = limiter.Allow(ctx, "key", window, 2)
	require.NoError(t, err)
	require.True(t, d.Allowed)
}

func TestSlidingWindowDisabled(t *testing.T) {
	d, err := SlidingWindow{}.Allow(context.Background(), "k", time.Second, 3)
	require.NoError(t, err)
	require.True(t, d.Allowed)
}

func TestHandlerMiddlewareEnforcesLimitPerUser(t *testing.T) {
	_, client := newRedis(t)
	handler := Handler{
		Limiter: SlidingWindow{Client: client, Prefix: "ratelimit:"},
		Config:  Config{Name: "checkout", Window: time.Minute, Max: 1},
	}
	counted := handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	as := func(user string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
		return req.WithContext(common.WithUserID(req.Context(), user))
	}

	rr := httptest.NewRecorder()
	counted.ServeHTTP(rr, as("u-1"))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	counted.ServeHTTP(rr, as("u-1"))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Equal(t, "1", rr.Header().Get("X-RateLimit-Limit"))
	require.NotEmpty(t, rr.Header().Get("Retry-After"))
	require.Contains(t, rr.Body.String(), "RATE_LIMITED")

	rr = httptest.NewRecorder()
	counted.ServeHTTP(rr, as("u-2"))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestHandlerMiddlewareFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	handler := Handler{
		Limiter: SlidingWindow{Client: client},
		Config:  Config{Name: "checkout", Window: time.Second, Max: 1},
	}
	counted := handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	counted.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestPublicLimiter(t *testing.T) {
	_, client := newRedis(t)
	l, err := NewPublic(client, "2-M", "public")
	require.NoError(t, err)

	handler := PublicMiddleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.RemoteAddr = "198.51.100.1:4000"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestNewPublicRejectsBadRate(t *testing.T) {
	_, err := NewPublic(nil, "lots", "public")
	require.Error(t, err)

	l, err := NewPublic(nil, "10-S", "public")
	require.NoError(t, err)
	require.NotNil(t, l)
}
