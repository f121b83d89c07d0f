package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newIdem(t *testing.T) (Idem, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return Idem{R: client, TTL: time.Minute}, mr
}

func idemRequest(key, user string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	req.Header.Set("Idempotency-Key", key)
	if user != "" {
		req = req.WithContext(WithUserID(req.Context(), user))
	}
	return req
}

func TestIdemReplaysStoredSuccess(t *testing.T) {
	idem, _ := newIdem(t)

	calls := 0
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		JSON(w, http.StatusCreated, map[string]string{"orderId": "o-1"})
	}))
	send := func(key, user string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, idemRequest(key, user))
		return rec
	}

	first := send("abc", "u1")
	require.Equal(t, http.StatusCreated, first.Code)
	require.Empty(t, first.Header().Get(ReplayedHeader))

	replay := send("abc", "u1")
	require.Equal(t, http.StatusCreated, replay.Code)
	require.Equal(t, "true", replay.Header().Get(ReplayedHeader))
	require.Equal(t, first.Body.String(), replay.Body.String())
	require.Contains(t, replay.Header().Get("Content-Type"), "application/json")

	require.Equal(t, http.StatusCreated, send("abc", "u2").Code)
	require.Equal(t, 2, calls)
}

func TestIdemReleasesKeyAfterFailure(t *testing.T) {
	idem, _ := newIdem(t)

	calls := 0
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			JSONError(w, http.StatusConflict, "CHECKOUT_IN_PROGRESS", "checkout already in progress", nil)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, idemRequest("retry-me", "u1"))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "CHECKOUT_IN_PROGRESS")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, idemRequest("retry-me", "u1"))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Empty(t, rec.Header().Get(ReplayedHeader))
	require.Equal(t, 2, calls)
}

func TestIdemReleasesKeyAfterPanic(t *testing.T) {
	idem, mr := newIdem(t)

	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	req := idemRequest("panics", "u1")
	require.Panics(t, func() { handler.ServeHTTP(httptest.NewRecorder(), req) })
	require.False(t, mr.Exists(idemKey(req, "panics")))
}

func TestIdemRejectsConcurrentDuplicate(t *testing.T) {
	idem, mr := newIdem(t)

	req := idemRequest("busy", "u1")
	require.NoError(t, mr.Set(idemKey(req, "busy"), idemPending))

	calls := 0
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "IDEMPOTENCY_IN_PROGRESS")
	require.Zero(t, calls)
}

func TestIdemPassThroughWithoutHeader(t *testing.T) {
	calls := 0
	handler := Idem{}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	}
	require.Equal(t, 2, calls)
}
