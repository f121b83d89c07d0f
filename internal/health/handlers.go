// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/noah-isme/backend-sneakers/internal/common"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checks  map[string]Check
	Timeout time.Duration

	draining atomic.Bool
}

// NewHandler returns a ready Handler probing checks.
func NewHandler(checks map[string]Check, timeout time.Duration) *Handler {
	return &Handler{Checks: checks, Timeout: timeout}
}

// Drain marks the process as shutting down; readiness fails from then on.
func (h *Handler) Drain() {
	h.draining.Store(true)
}

// Live reports liveness status.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready probes every dependency with a bounded timeout.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.draining.Load() {
		common.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "draining"})
		return
	}
	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := map[string]string{}
	healthy := len(names) > 0
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
		err := h.Checks[name](ctx)
		cancel()
		if err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	common.JSON(w, code, status)
}

func (h *Handler) timeout() time.Duration {
	if h.Timeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.Timeout
}

// PingCheck adapts anything with Ping(ctx) error.
func PingCheck(p Pinger) Check {
	return func(ctx context.Context) error { return p.Ping(ctx) }
}
