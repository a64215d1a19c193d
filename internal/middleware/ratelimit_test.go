package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRateLimiter(t *testing.T, limit int, window time.Duration) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRateLimiter(client, "auth", limit, window), mr
}

func limitedHandler(rl *RateLimiter) http.Handler {
	return rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func hit(handler http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_AdmitsWithinWindow(t *testing.T) {
	rl, _ := setupRateLimiter(t, 5, time.Minute)
	handler := limitedHandler(rl)

	for i := 0; i < 5; i++ {
		rec := hit(handler, "192.168.1.1:12345")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}
}

func TestRateLimiter_RejectsWhenWindowFull(t *testing.T) {
	rl, _ := setupRateLimiter(t, 3, time.Minute)
	handler := limitedHandler(rl)

	for i := 0; i < 3; i++ {
		rec := hit(handler, "10.0.0.1:12345")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}

	rec := hit(handler, "10.0.0.1:12345")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, rateLimitedBody, rec.Body.String())
}

func TestRateLimiter_WindowsArePerIP(t *testing.T) {
	rl, _ := setupRateLimiter(t, 2, time.Minute)
	handler := limitedHandler(rl)

	for i := 0; i < 2; i++ {
		hit(handler, "1.1.1.1:1")
	}
	require.Equal(t, http.StatusTooManyRequests, hit(handler, "1.1.1.1:1").Code)

	assert.Equal(t, http.StatusOK, hit(handler, "2.2.2.2:1").Code)
}

func TestRateLimiter_FailsOpenWithoutRedis(t *testing.T) {
	rl, mr := setupRateLimiter(t, 1, time.Minute)
	mr.Close()

	rec := hit(limitedHandler(rl), "3.3.3.3:1")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"socket address", "10.1.2.3:4567", nil, "10.1.2.3"},
		{"forwarded first hop", "10.1.2.3:4567", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "203.0.113.9"},
		{"real ip", "10.1.2.3:4567", map[string]string{"X-Real-IP": "203.0.113.7"}, "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
