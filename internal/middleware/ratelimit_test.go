package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupRateLimiter(t *testing.T, scope string, maxReqs, windowSec int) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRateLimiter(client, scope, maxReqs, windowSec), mr
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hit(handler http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	rl, _ := setupRateLimiter(t, "auth", 5, 60)
	handler := rl.Middleware(okHandler())

	for i := 0; i < 5; i++ {
		rec := hit(handler, "192.168.1.1:12345")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "5" {
			t.Fatalf("expected X-RateLimit-Limit: 5, got %q", rec.Header().Get("X-RateLimit-Limit"))
		}
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	rl, _ := setupRateLimiter(t, "auth", 3, 60)
	handler := rl.Middleware(okHandler())

	for i := 0; i < 3; i++ {
		rec := hit(handler, "10.0.0.1:12345")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	// 4th request should be blocked
	rec := hit(handler, "10.0.0.1:12345")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After: 60, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestRateLimiter_DifferentIPsIndependent(t *testing.T) {
	rl, _ := setupRateLimiter(t, "auth", 2, 60)
	handler := rl.Middleware(okHandler())

	// Exhaust IP 1
	for i := 0; i < 2; i++ {
		hit(handler, "1.1.1.1:1")
	}

	// IP 2 should still be allowed
	rec := hit(handler, "2.2.2.2:1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for different IP, got %d", rec.Code)
	}
}

func TestRateLimiter_ScopesIndependent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	authLimiter := NewRateLimiter(client, "auth", 1, 60)
	uploadLimiter := NewRateLimiter(client, "upload", 1, 60)

	authHandler := authLimiter.Middleware(okHandler())
	uploadHandler := uploadLimiter.Middleware(okHandler())

	// Exhaust the auth scope for this IP.
	hit(authHandler, "4.4.4.4:1")
	if rec := hit(authHandler, "4.4.4.4:1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 in exhausted scope, got %d", rec.Code)
	}

	// The upload scope has its own budget.
	if rec := hit(uploadHandler, "4.4.4.4:1"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 in fresh scope, got %d", rec.Code)
	}
}

func TestRateLimiter_UsesForwardedForHeader(t *testing.T) {
	rl, _ := setupRateLimiter(t, "auth", 1, 60)
	handler := rl.Middleware(okHandler())

	req := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
	req.RemoteAddr = "127.0.0.1:1"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	// Same client IP behind a different proxy hop is still the same budget.
	req = httptest.NewRequest("POST", "/api/v1/auth/login", nil)
	req.RemoteAddr = "127.0.0.2:1"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.2")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for same forwarded IP, got %d", rec.Code)
	}
}

func TestRateLimiter_FailsOpenOnRedisError(t *testing.T) {
	rl, mr := setupRateLimiter(t, "auth", 1, 60)
	mr.Close() // kill Redis

	handler := rl.Middleware(okHandler())

	rec := hit(handler, "3.3.3.3:1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on Redis failure (fail-open), got %d", rec.Code)
	}
}
