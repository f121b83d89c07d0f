package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-sneakers/internal/auth"
	"github.com/noah-isme/backend-sneakers/internal/health"
	"github.com/noah-isme/backend-sneakers/internal/obs"
	"github.com/noah-isme/backend-sneakers/internal/ratelimit"
	"github.com/noah-isme/backend-sneakers/internal/rbac"
)

const routerSecret = "router-secret"

func testRouter(t *testing.T, publicRate string) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	verifier, err := auth.NewVerifier(auth.VerifierConfig{Secret: routerSecret})
	require.NoError(t, err)
	public, err := ratelimit.NewPublic(nil, publicRate, "test:")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	return newRouter(routerDeps{
		Logger:        zerolog.Nop(),
		Redis:         client,
		Auth:          auth.Middleware{Verifier: verifier},
		Policy:        rbac.DefaultPolicy(),
		HTTPMetrics:   obs.NewHTTPMetrics("test", nil, reg),
		Gatherer:      reg,
		BodyLimit:     1 << 20,
		PublicLimiter: public,
		CheckoutLimit: ratelimit.Config{Name: "checkout", Window: time.Minute, Max: 5},
		Health:        health.NewHandler(nil, time.Second),
	})
}

func bearer(t *testing.T, roles ...string) string {
	t.Helper()
	tok, err := jwt.NewBuilder().Subject("user-1").Expiration(time.Now().Add(time.Hour)).
		Claim(auth.RolesClaim, roles).Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte(routerSecret)))
	require.NoError(t, err)
	return "Bearer " + string(signed)
}

func do(h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterHealthAndMetrics(t *testing.T) {
	h := testRouter(t, "100-M")

	live := do(h, http.MethodGet, "/health/live", "")
	require.Equal(t, http.StatusOK, live.Code)
	require.Equal(t, "nosniff", live.Header().Get("X-Content-Type-Options"))

	ready := do(h, http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusServiceUnavailable, ready.Code)

	metrics := do(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, metrics.Code)
	require.Contains(t, metrics.Body.String(), "test_http_requests_total")
}

func TestRouterAdminGuards(t *testing.T) {
	h := testRouter(t, "100-M")

	require.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/api/v1/admin/orders", "").Code)
	require.Equal(t, http.StatusForbidden, do(h, http.MethodGet, "/api/v1/admin/orders", bearer(t, "customer")).Code)
	require.Equal(t, http.StatusForbidden, do(h, http.MethodPost, "/api/v1/admin/products", bearer(t, "customer")).Code)
	require.Equal(t, http.StatusForbidden, do(h, http.MethodPatch, "/api/v1/admin/orders/x/status", bearer(t, "staff")).Code)
	require.Equal(t, http.StatusForbidden, do(h, http.MethodPost, "/api/v1/checkout", bearer(t, "staff")).Code)
	require.Equal(t, http.StatusUnauthorized, do(h, http.MethodPost, "/api/v1/checkout", "").Code)
}

func TestRouterPublicRateLimit(t *testing.T) {
	h := testRouter(t, "2-M")

	require.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/api/v1/orders", "").Code)
	require.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/api/v1/orders", "").Code)
	limited := do(h, http.MethodGet, "/api/v1/orders", "")
	require.Equal(t, http.StatusTooManyRequests, limited.Code)
	require.Contains(t, limited.Body.String(), "RATE_LIMITED")
}
