package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/chefhub/pkg/contextkeys"
	"github.com/platinummonkey/chefhub/pkg/identity"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(cfg *RateLimitConfig) (*RateLimiter, *manualClock) {
	clock := &manualClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(cfg)
	rl.now = clock.Now
	return rl, clock
}

func drain(t *testing.T, l Limiter, key string, attempts int) int {
	t.Helper()
	allowed := 0
	for i := 0; i < attempts; i++ {
		ok, err := l.Allow(context.Background(), key)
		require.NoError(t, err)
		if ok {
			allowed++
		}
	}
	return allowed
}

func TestRateLimiter_Allow(t *testing.T) {
	cfg := &RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Second, BurstSize: 2}
	limiter, clock := newTestLimiter(cfg)

	assert.Equal(t, 12, drain(t, limiter, "user:1", 20))
	assert.Equal(t, 12, drain(t, limiter, "user:2", 12), "buckets are per key")

	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, 1, drain(t, limiter, "user:1", 5))

	clock.Advance(10 * time.Second)
	assert.Equal(t, 12, drain(t, limiter, "user:1", 20), "refill is capped at rate plus burst")
}

func TestRateLimiter_RefillsContinuously(t *testing.T) {
	cfg := &RateLimitConfig{RequestsPerWindow: 60, WindowDuration: time.Minute}
	limiter, clock := newTestLimiter(cfg)

	assert.Equal(t, 60, drain(t, limiter, "user:1", 61))

	// A fixed window would stay closed until the minute is over
	clock.Advance(5 * time.Second)
	assert.Equal(t, 5, drain(t, limiter, "user:1", 10))

	clock.Advance(30 * time.Second)
	assert.Equal(t, 30, drain(t, limiter, "user:1", 40))
}

func TestRateLimiter_RetryAfter(t *testing.T) {
	tests := []struct {
		name string
		cfg  *RateLimitConfig
		want time.Duration
	}{
		{"one token per second", &RateLimitConfig{RequestsPerWindow: 60, WindowDuration: time.Minute}, time.Second},
		{"rounds up", &RateLimitConfig{RequestsPerWindow: 7, WindowDuration: time.Minute}, 9 * time.Second},
		{"never below a second", &RateLimitConfig{RequestsPerWindow: 1000, WindowDuration: time.Minute}, time.Second},
		{"slow refill", &RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Hour}, 30 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewRateLimiter(tt.cfg).RetryAfter())
		})
	}

	distributed := NewDistributedRateLimiter(nil, &RateLimitConfig{RequestsPerWindow: 60, WindowDuration: time.Minute}, "")
	assert.Equal(t, time.Minute, distributed.RetryAfter())
}

func TestRateLimiter_Cleanup(t *testing.T) {
	cfg := &RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Second}
	limiter, clock := newTestLimiter(cfg)

	drain(t, limiter, "ip:1", 1)
	clock.Advance(time.Second)
	drain(t, limiter, "ip:2", 1)
	clock.Advance(1500 * time.Millisecond)

	limiter.Cleanup()

	limiter.mu.RLock()
	defer limiter.mu.RUnlock()
	assert.NotContains(t, limiter.buckets, "ip:1")
	assert.Contains(t, limiter.buckets, "ip:2")
}

func TestRateLimiter_Concurrency(t *testing.T) {
	cfg := &RateLimitConfig{RequestsPerWindow: 50, WindowDuration: time.Hour}
	limiter, _ := newTestLimiter(cfg)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if ok, _ := limiter.Allow(context.Background(), "shared"); ok {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}

func TestDistributedRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute, BurstSize: 1}
	limiter := NewDistributedRateLimiter(client, cfg, "")

	assert.Equal(t, 4, drain(t, limiter, "user:1", 6))
	assert.True(t, mr.Exists("chefhub:ratelimit:user:1"))
	assert.Equal(t, time.Minute, mr.TTL("chefhub:ratelimit:user:1"))

	mr.FastForward(time.Minute)
	assert.Equal(t, 4, drain(t, limiter, "user:1", 6), "a new window starts after expiry")

	require.NoError(t, limiter.Reset(context.Background(), "user:1"))
	assert.Equal(t, 1, drain(t, limiter, "user:1", 1))
}

func TestDistributedRateLimiter_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	limiter := NewDistributedRateLimiter(client, nil, "test")
	mr.Close()

	ok, err := limiter.Allow(context.Background(), "k")
	assert.Error(t, err)
	assert.True(t, ok)
}

type failingLimiter struct{}

func (failingLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return false, errors.New("unavailable")
}

func (failingLimiter) Config() *RateLimitConfig { return DefaultRateLimitConfig() }

func (failingLimiter) RetryAfter() time.Duration { return time.Minute }

func TestRateLimitMiddleware_Handler(t *testing.T) {
	logger, _ := test.NewNullLogger()
	users, _ := newTestLimiter(&RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute})
	anon, _ := newTestLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
	handler := NewRateLimitMiddleware(users, anon, logger).Handler(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	call := func(actor *identity.Actor, remoteAddr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/courses", nil)
		req.RemoteAddr = remoteAddr
		if actor != nil {
			req = req.WithContext(contextkeys.WithActor(req.Context(), *actor))
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	student := &identity.Actor{UserID: "s1", Role: identity.RoleStudent}
	assert.Equal(t, http.StatusOK, call(student, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusOK, call(student, "10.0.0.2:1234").Code)
	w := call(student, "10.0.0.3:1234")
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "users are keyed by id, not address")
	assert.Equal(t, "30", w.Header().Get("Retry-After"), "one token refills every 30s")
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))

	assert.Equal(t, http.StatusOK, call(nil, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, call(nil, "10.0.0.1:5678").Code, "anonymous callers are keyed by host")
	assert.Equal(t, http.StatusOK, call(nil, "10.0.0.9:1234").Code)
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	logger, hook := test.NewNullLogger()
	handler := NewRateLimitMiddleware(failingLimiter{}, failingLimiter{}, logger).Handler(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	require.NotNil(t, hook.LastEntry())
	assert.Contains(t, hook.LastEntry().Message, "rate limiter unavailable")
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		want       string
	}{
		{name: "forwarded chain", forwarded: "203.0.113.5, 10.0.0.1", remoteAddr: "10.0.0.1:80", want: "203.0.113.5"},
		{name: "real ip", realIP: "198.51.100.7", remoteAddr: "10.0.0.1:80", want: "198.51.100.7"},
		{name: "remote addr", remoteAddr: "192.0.2.1:4321", want: "192.0.2.1"},
		{name: "remote addr without port", remoteAddr: "192.0.2.1", want: "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}
