package common

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	idemPending = "pending"
	// ReplayedHeader marks a response served from the idempotency store.
	ReplayedHeader = "Idempotency-Replayed"
)

// Idem provides an Idempotency-Key middleware backed by Redis. Successful
// responses are stored and replayed for the key's lifetime; failed requests
// release the key so the client can retry with it.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType,omitempty"`
	Body        []byte `json:"body"`
}

// idemKey scopes the client-supplied key by caller and route so two users
// cannot collide on the same header value.
func idemKey(r *http.Request, header string) string {
	owner, _ := UserID(r.Context())
	sum := sha256.Sum256([]byte(owner + "|" + r.Method + "|" + r.URL.Path + "|" + header))
	return "idem:" + hex.EncodeToString(sum[:])
}

func (i Idem) ttl() time.Duration {
	if i.TTL <= 0 {
		return 24 * time.Hour
	}
	return i.TTL
}

// Middleware enforces idempotency semantics for write endpoints.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		key := idemKey(r, header)
		ok, err := i.R.SetNX(ctx, key, idemPending, i.ttl()).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", nil)
			return
		}
		if !ok {
			i.replay(w, r, key)
			return
		}

		rec := &captureWriter{ResponseWriter: w}
		stored := false
		defer func() {
			if !stored {
				_ = i.R.Del(context.Background(), key).Err()
			}
		}()
		next.ServeHTTP(rec, r)

		status := rec.status()
		if status < 200 || status >= 300 {
			return
		}
		raw, err := json.Marshal(storedResponse{Status: status, ContentType: rec.Header().Get("Content-Type"), Body: rec.body.Bytes()})
		if err != nil {
			return
		}
		if err := i.R.Set(context.Background(), key, raw, i.ttl()).Err(); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("idempotency_store_failed")
			return
		}
		stored = true
	})
}

func (i Idem) replay(w http.ResponseWriter, r *http.Request, key string) {
	raw, err := i.R.Get(r.Context(), key).Bytes()
	if errors.Is(err, redis.Nil) || (err == nil && string(raw) == idemPending) {
		JSONError(w, http.StatusConflict, "IDEMPOTENCY_IN_PROGRESS", "a request with this key is still being processed", nil)
		return
	}
	if err != nil {
		JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", nil)
		return
	}
	var resp storedResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", nil)
		return
	}
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

// captureWriter writes through to the client while keeping a copy of the
// status and body.
type captureWriter struct {
	http.ResponseWriter
	code int
	body bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	if c.code == 0 {
		c.code = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(p []byte) (int, error) {
	if c.code == 0 {
		c.code = http.StatusOK
	}
	c.body.Write(p)
	return c.ResponseWriter.Write(p)
}

func (c *captureWriter) Unwrap() http.ResponseWriter { return c.ResponseWriter }

func (c *captureWriter) status() int {
	if c.code == 0 {
		return http.StatusOK
	}
	return c.code
}
