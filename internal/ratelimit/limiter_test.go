package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRegistry() (*Registry, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	r := NewRegistry()
	r.Clock = clock.Now
	return r, clock
}

func TestCheckAndConsume_FixedWindowAdmission(t *testing.T) {
	r, _ := newTestRegistry()
	cfg := Config{MaxRequests: 3, Window: time.Minute, KeyPrefix: "chat"}

	for i := 0; i < 3; i++ {
		res := r.CheckAndConsume("1.2.3.4", cfg)
		require.True(t, res.Allowed, "request %d", i+1)
		require.Equal(t, 2-i, res.Remaining)
		require.Zero(t, res.RetryAfter)
	}

	res := r.CheckAndConsume("1.2.3.4", cfg)
	require.False(t, res.Allowed)
	require.Equal(t, 0, res.Remaining)
	require.Equal(t, 60, res.RetryAfter)

	res = r.CheckAndConsume("1.2.3.4", cfg)
	require.False(t, res.Allowed)
}

func TestCheckAndConsume_RetryAfterRoundsUp(t *testing.T) {
	r, clock := newTestRegistry()
	cfg := Config{MaxRequests: 1, Window: 10 * time.Second}

	r.CheckAndConsume("c", cfg)
	clock.Advance(8500 * time.Millisecond)

	res := r.CheckAndConsume("c", cfg)
	require.False(t, res.Allowed)
	require.Equal(t, 2, res.RetryAfter)
}

func TestCheckAndConsume_WindowReset(t *testing.T) {
	r, clock := newTestRegistry()
	cfg := Config{MaxRequests: 2, Window: time.Minute}

	for i := 0; i < 5; i++ {
		r.CheckAndConsume("c", cfg)
	}

	// Still inside the window at exactly resetTime.
	clock.Advance(time.Minute)
	require.False(t, r.CheckAndConsume("c", cfg).Allowed)

	clock.Advance(time.Millisecond)
	res := r.CheckAndConsume("c", cfg)
	require.True(t, res.Allowed)
	require.Equal(t, 1, res.Remaining)
	require.Equal(t, clock.Now().Add(time.Minute), res.ResetTime)
}

func TestCheckAndConsume_KeyIsolation(t *testing.T) {
	r, _ := newTestRegistry()
	chat := Config{MaxRequests: 1, Window: time.Minute, KeyPrefix: "chat"}
	github := Config{MaxRequests: 5, Window: time.Minute, KeyPrefix: "github"}

	require.True(t, r.CheckAndConsume("c", chat).Allowed)
	require.False(t, r.CheckAndConsume("c", chat).Allowed)

	res := r.CheckAndConsume("c", github)
	require.True(t, res.Allowed)
	require.Equal(t, 4, res.Remaining)

	require.True(t, r.CheckAndConsume("other", chat).Allowed)
	require.Equal(t, 3, r.Len())
}

func TestExpire_Idempotent(t *testing.T) {
	r, clock := newTestRegistry()

	r.CheckAndConsume("short", Config{MaxRequests: 5, Window: time.Second})
	r.CheckAndConsume("long", Config{MaxRequests: 5, Window: time.Hour})

	require.Equal(t, 0, r.Expire())
	require.Equal(t, 2, r.Len())

	clock.Advance(2 * time.Second)
	require.Equal(t, 1, r.Expire())
	require.Equal(t, 0, r.Expire())
	require.Equal(t, 0, r.Expire())
	require.Equal(t, 1, r.Len())

	res := r.CheckAndConsume("long", Config{MaxRequests: 5, Window: time.Hour})
	require.Equal(t, 3, res.Remaining)
}

func TestRun_StopsOnCancel(t *testing.T) {
	r := NewRegistry()
	r.CheckAndConsume("c", Config{MaxRequests: 1, Window: time.Nanosecond})

	ctx, cancel := context.WithCancel(context.Background())
	swept := make(chan int, 16)
	done := make(chan struct{})
	go func() {
		r.Run(ctx, 5*time.Millisecond, func(n int) {
			select {
			case swept <- n:
			default:
			}
		})
		close(done)
	}()

	require.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCheckAndConsume_Concurrent(t *testing.T) {
	r, _ := newTestRegistry()
	cfg := Config{MaxRequests: 50, Window: time.Minute}

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.CheckAndConsume("c", cfg).Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 50, allowed)
}

func TestIdentifyClient(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{
			name:    "forwarded for first hop",
			headers: map[string]string{"X-Forwarded-For": " 10.0.0.1 , 10.0.0.2", "X-Real-IP": "10.9.9.9"},
			want:    "10.0.0.1",
		},
		{
			name:    "real ip",
			headers: map[string]string{"X-Real-IP": "10.9.9.9"},
			want:    "10.9.9.9",
		},
		{
			name:    "user agent hash",
			headers: map[string]string{"User-Agent": "curl/8.0"},
			want:    userAgentBucket("curl/8.0"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Del("User-Agent")
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tt.want, IdentifyClient(req))
		})
	}
}

func TestIdentifyClient_UserAgentHashDeterministic(t *testing.T) {
	a := userAgentBucket("Mozilla/5.0")
	require.Equal(t, a, userAgentBucket("Mozilla/5.0"))
	require.NotEqual(t, a, userAgentBucket("Mozilla/5.1"))
	require.Contains(t, a, "ua-")
}

func TestHeaders(t *testing.T) {
	reset := time.Date(2025, 1, 1, 12, 1, 0, 0, time.UTC)

	h := Headers(Result{Allowed: true, Remaining: 4, ResetTime: reset})
	require.Equal(t, "4", h.Get(HeaderRemaining))
	require.Equal(t, strconv.FormatInt(reset.Unix(), 10), h.Get(HeaderReset))
	require.Empty(t, h.Get(HeaderRetryAfter))

	h = Headers(Result{Allowed: false, ResetTime: reset, RetryAfter: 17})
	require.Equal(t, "0", h.Get(HeaderRemaining))
	require.Equal(t, "17", h.Get(HeaderRetryAfter))
}

func TestRejection(t *testing.T) {
	body := Rejection(Result{Allowed: false, RetryAfter: 42})
	require.Equal(t, 42, body.RetryAfter)
	require.NotEmpty(t, body.Error)
	require.Contains(t, body.Message, "42 seconds")
}
