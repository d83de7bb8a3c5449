package main

import (
	"sync"
	"time"
)

// RateLimitResult is the outcome of a single admission check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetTime time.Time
}

type rateLimitEntry struct {
	count     int
	resetTime time.Time
}

// RateLimiter is a fixed-window counter keyed by client identifier (IP).
// Each protected endpoint class gets its own instance, so exhausting the
// login budget does not block refreshes.
//
// Fixed windows are deliberately imprecise: a burst straddling a window
// boundary can admit up to twice the budget. That is accepted here, not a
// bug to fix with a sliding window.
type RateLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string]*rateLimitEntry
}

func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		max:     max,
		window:  window,
		entries: make(map[string]*rateLimitEntry),
	}
}

// CheckRateLimit counts the current request against identifier's window and
// reports whether it is admitted. The lookup-reset-increment sequence holds
// the mutex throughout: two concurrent requests must never both read the same
// count and slip past the threshold together.
func (rl *RateLimiter) CheckRateLimit(identifier string) RateLimitResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	entry, ok := rl.entries[identifier]
	if !ok || !now.Before(entry.resetTime) {
		entry = &rateLimitEntry{resetTime: now.Add(rl.window)}
		rl.entries[identifier] = entry
	}

	entry.count++
	allowed := entry.count <= rl.max

	remaining := 0
	if allowed {
		remaining = rl.max - entry.count
	}

	return RateLimitResult{
		Allowed:   allowed,
		Remaining: remaining,
		ResetTime: entry.resetTime,
	}
}

// Max returns the per-window request budget.
func (rl *RateLimiter) Max() int { return rl.max }

// Clear wipes all tracked identifiers. Used for test isolation and
// administrative resets only.
func (rl *RateLimiter) Clear() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.entries = make(map[string]*rateLimitEntry)
}
