package middleware

import (
	"context"
	"errors"
	"fmt"
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
)

func TestLocalLimiter_Allow(t *testing.T) {
	rl := NewLocalLimiter(&RateLimitConfig{
		RequestsPerWindow: 2,
		WindowDuration:    time.Hour,
		BurstSize:         1,
	})
	ctx := context.Background()

	for i, wantRemaining := range []int{2, 1, 0} {
		d, err := rl.Allow(ctx, "ip:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, wantRemaining, d.Remaining)
		assert.Equal(t, 2, d.Limit)
	}

	d, err := rl.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Zero(t, d.Remaining)

	d, _ = rl.Allow(ctx, "ip:5.6.7.8")
	assert.True(t, d.Allowed, "keys are independent")
}

func TestLocalLimiter_Refill(t *testing.T) {
	rl := NewLocalLimiter(&RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    100 * time.Millisecond,
	})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		d, _ := rl.Allow(ctx, "k")
		require.True(t, d.Allowed)
	}
	d, _ := rl.Allow(ctx, "k")
	require.False(t, d.Allowed)

	time.Sleep(50 * time.Millisecond)

	d, _ = rl.Allow(ctx, "k")
	assert.True(t, d.Allowed)
}

func TestLocalLimiter_Concurrent(t *testing.T) {
	rl := NewLocalLimiter(&RateLimitConfig{RequestsPerWindow: 50, WindowDuration: time.Hour})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d, _ := rl.Allow(context.Background(), "k"); d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}

func TestLocalLimiter_Cleanup(t *testing.T) {
	rl := NewLocalLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 10 * time.Millisecond})
	rl.Allow(context.Background(), "old")

	time.Sleep(30 * time.Millisecond)
	rl.Cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.buckets)
}

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestDistributedRateLimiter_Allow(t *testing.T) {
	client, mr := setupRedis(t)
	rl := NewDistributedRateLimiter(client, &RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}, "")
	ctx := context.Background()

	d, err := rl.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
	assert.Equal(t, time.Minute, d.Reset)
	assert.Equal(t, time.Minute, mr.TTL("sphinxql:ratelimit:ip:1.2.3.4"))

	mr.FastForward(20 * time.Second)

	d, err = rl.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 40*time.Second, d.Reset, "window is not extended")

	d, err = rl.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Zero(t, d.Remaining)

	mr.FastForward(time.Minute)

	d, err = rl.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "new window")
}

func TestDistributedRateLimiter_ResetAndHealth(t *testing.T) {
	client, mr := setupRedis(t)
	rl := NewDistributedRateLimiter(client, &RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}, "rl")
	ctx := context.Background()

	rl.Allow(ctx, "k")
	d, _ := rl.Allow(ctx, "k")
	require.False(t, d.Allowed)

	require.NoError(t, rl.Reset(ctx, "k"))
	d, _ = rl.Allow(ctx, "k")
	assert.True(t, d.Allowed)

	assert.NoError(t, rl.HealthCheck(ctx))
	mr.Close()
	assert.Error(t, rl.HealthCheck(ctx))

	_, err := rl.Allow(ctx, "k")
	assert.ErrorContains(t, err, "redis error")
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{}, errors.New("redis down")
}

func TestRateLimitMiddleware(t *testing.T) {
	logger, _ := test.NewNullLogger()
	limiter := NewLocalLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})

	handler := RateLimit(limiter, nil, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := func(path string) *httptest.ResponseRecorder {
		r := httptest.NewRequest("GET", path, nil)
		r.RemoteAddr = "10.0.0.1:51234"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, r)
		return rr
	}

	rr := req("/search")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rr.Header().Get("X-RateLimit-Reset"))

	rr = req("/search")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded","retry_after":60}`, rr.Body.String())

	assert.Equal(t, http.StatusOK, req("/health/ready").Code, "health is never limited")
	assert.Equal(t, http.StatusOK, req("/metrics").Code)
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	logger, hook := test.NewNullLogger()

	handler := RateLimit(failingLimiter{}, nil, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/search", nil))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Rate limiter unavailable, allowing request", hook.LastEntry().Message)
	assert.Equal(t, "ip:192.0.2.1", hook.LastEntry().Data["key"])
}

func TestClientIPResolver(t *testing.T) {
	ips, err := NewClientIPResolver([]string{"10.0.0.0/8", "192.0.2.10"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		resolve *ClientIPResolver
		headers map[string]string
		remote  string
		want    string
	}{
		{"untrusted peer ignores forwarded header", ips, map[string]string{"X-Forwarded-For": "203.0.113.7"}, "198.51.100.9:1", "198.51.100.9"},
		{"nil resolver ignores forwarded header", nil, map[string]string{"X-Forwarded-For": "203.0.113.7"}, "10.0.0.3:1", "10.0.0.3"},
		{"trusted proxy appends client", ips, map[string]string{"X-Forwarded-For": "203.0.113.7"}, "10.0.0.3:1", "203.0.113.7"},
		{"spoofed left hops are skipped", ips, map[string]string{"X-Forwarded-For": "1.1.1.1, 203.0.113.7"}, "10.0.0.3:1", "203.0.113.7"},
		{"trusted hops are skipped", ips, map[string]string{"X-Forwarded-For": "203.0.113.7, 10.1.2.3"}, "192.0.2.10:1", "203.0.113.7"},
		{"real ip from trusted proxy", ips, map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.3:1", "198.51.100.4"},
		{"trusted proxy without headers", ips, nil, "10.0.0.3:1", "10.0.0.3"},
		{"remote without port", ips, nil, "192.0.2.9", "192.0.2.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, tt.resolve.Resolve(r))
		})
	}
}

func TestNewClientIPResolver_Invalid(t *testing.T) {
	_, err := NewClientIPResolver([]string{"10.0.0.0/33"})
	assert.ErrorContains(t, err, "invalid trusted proxy")

	_, err = NewClientIPResolver([]string{"proxy.internal"})
	assert.ErrorContains(t, err, "invalid trusted proxy")

	ips, err := NewClientIPResolver([]string{" ", ""})
	require.NoError(t, err)
	assert.Empty(t, ips.trusted)
}

func TestRateLimitMiddleware_ForwardedHeaderCannotEvadeLimit(t *testing.T) {
	logger, _ := test.NewNullLogger()
	limiter := NewLocalLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})

	handler := RateLimit(limiter, nil, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		r := httptest.NewRequest("GET", "/search", nil)
		r.RemoteAddr = "198.51.100.9:4000"
		r.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, r)
		assert.Equal(t, want, rr.Code, "request %d", i)
	}
}
