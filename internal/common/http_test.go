package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if got := ClientIP(req); got != "10.0.0.1" {
		t.Fatalf("expected remote host, got %q", got)
	}
	req.Header.Set("X-Real-IP", "192.0.2.7")
	if got := ClientIP(req); got != "192.0.2.7" {
		t.Fatalf("expected real ip, got %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.9" {
		t.Fatalf("expected forwarded ip, got %q", got)
	}
}

func TestCallerKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if got := CallerKey(req); got != "ip:10.0.0.1" {
		t.Fatalf("unexpected anonymous key %q", got)
	}
	req = req.WithContext(WithUserID(req.Context(), "user-1"))
	if got := CallerKey(req); got != "user:user-1" {
		t.Fatalf("unexpected user key %q", got)
	}
}
