package notifier

import (
	"sync"
	"time"
)

// RateLimiter is a sliding window rate limiter for notifications. It
// keeps alert storms (a failing irrigation line trips every plot) from
// flooding the channels.
type RateLimiter struct {
	mu           sync.Mutex
	maxPerWindow int
	window       time.Duration
	timestamps   []time.Time
	dropped      int64
	enabled      bool
}

// RateLimitConfig holds rate limiter configuration.
type RateLimitConfig struct {
	MaxPerWindow int           // Maximum notifications per window (default: 10)
	Window       time.Duration // Time window (default: 1 minute)
	Enabled      bool          // Whether rate limiting is enabled (default: true)
}

// DefaultRateLimitConfig returns default rate limit settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxPerWindow: 10,
		Window:       time.Minute,
		Enabled:      true,
	}
}

// NewRateLimiter creates a rate limiter with the given configuration.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.MaxPerWindow <= 0 {
		config.MaxPerWindow = 10
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}

	return &RateLimiter{
		maxPerWindow: config.MaxPerWindow,
		window:       config.Window,
		timestamps:   make([]time.Time, 0, config.MaxPerWindow),
		enabled:      config.Enabled,
	}
}

// Allow reports whether a notification fits under the rate limit and
// consumes a slot when it does.
func (r *RateLimiter) Allow() bool {
	if !r.enabled {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.cleanup(now.Add(-r.window))

	if len(r.timestamps) >= r.maxPerWindow {
		r.dropped++
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// cleanup removes timestamps older than the cutoff. Lock must be held.
func (r *RateLimiter) cleanup(cutoff time.Time) {
	idx := 0
	for idx < len(r.timestamps) && r.timestamps[idx].Before(cutoff) {
		idx++
	}
	if idx > 0 {
		copy(r.timestamps, r.timestamps[idx:])
		r.timestamps = r.timestamps[:len(r.timestamps)-idx]
	}
}

// Dropped returns the number of notifications dropped so far.
func (r *RateLimiter) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Stats returns rate limiter statistics.
func (r *RateLimiter) Stats() RateLimitStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return RateLimitStats{
		Dropped:      r.dropped,
		CurrentCount: len(r.timestamps),
		MaxPerWindow: r.maxPerWindow,
		Window:       r.window,
		Enabled:      r.enabled,
	}
}

// RateLimitStats contains rate limiter statistics.
type RateLimitStats struct {
	Dropped      int64
	CurrentCount int
	MaxPerWindow int
	Window       time.Duration
	Enabled      bool
}

// Reset clears the rate limiter state.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.timestamps = r.timestamps[:0]
	r.dropped = 0
}
