package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Config describes one limiter call site. Limiters sharing a Registry are
// kept apart by KeyPrefix.
type Config struct {
	MaxRequests int
	Window      time.Duration
	KeyPrefix   string
}

// Result is the outcome of a single admission check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetTime time.Time
	// RetryAfter is in whole seconds and only set when Allowed is false.
	RetryAfter int
}

type entry struct {
	count     int
	resetTime time.Time
}

// Registry holds fixed-window counters for every (prefix, client) pair seen
// by this process. Counters are not shared between instances.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	Clock   func() time.Time
}

// ------------------------------------------------------------------------------------------------------
// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
	}
}

// ------------------------------------------------------------------------------------------------------
// CheckAndConsume counts one request from clientID against cfg and reports
// whether it is admitted. Exactly MaxRequests requests pass per window.
func (r *Registry) CheckAndConsume(clientID string, cfg Config) Result {
	key := cacheKey(cfg.KeyPrefix, clientID)
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok || now.After(e.resetTime) {
		e = &entry{count: 1, resetTime: now.Add(cfg.Window)}
		r.entries[key] = e
		return Result{
			Allowed:   true,
			Remaining: nonNegative(cfg.MaxRequests - 1),
			ResetTime: e.resetTime,
		}
	}

	e.count++
	if e.count > cfg.MaxRequests {
		return Result{
			Allowed:    false,
			Remaining:  0,
			ResetTime:  e.resetTime,
			RetryAfter: retryAfterSeconds(e.resetTime.Sub(now)),
		}
	}

	return Result{
		Allowed:   true,
		Remaining: cfg.MaxRequests - e.count,
		ResetTime: e.resetTime,
	}
}

// ------------------------------------------------------------------------------------------------------
// Expire removes every entry whose window has already ended and returns how
// many were removed. It only bounds memory; CheckAndConsume checks expiry itself.
func (r *Registry) Expire() int {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, e := range r.entries {
		if e.resetTime.Before(now) {
			delete(r.entries, key)
			removed++
		}
	}
	return removed
}

// ------------------------------------------------------------------------------------------------------
// Run sweeps expired entries every interval until ctx is cancelled. onSweep,
// when non-nil, receives the number of entries removed by each pass.
func (r *Registry) Run(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := r.Expire()
			if onSweep != nil {
				onSweep(removed)
			}
		}
	}
}

// Len returns the number of tracked keys.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}

func cacheKey(prefix, clientID string) string {
	if prefix == "" {
		return clientID
	}
	return prefix + ":" + clientID
}

// A blocked caller is always told to wait at least one second.
func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
