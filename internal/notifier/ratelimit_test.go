package notifier

import (
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{
		MaxPerWindow: 3,
		Window:       time.Minute,
		Enabled:      true,
	})

	for i := 0; i < 3; i++ {
		if !limiter.Allow() {
			t.Fatalf("Allow() %d = false, want true", i)
		}
	}

	if limiter.Allow() {
		t.Error("Allow() = true after window is full")
	}

	if got := limiter.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{
		MaxPerWindow: 1,
		Window:       time.Minute,
		Enabled:      false,
	})

	for i := 0; i < 10; i++ {
		if !limiter.Allow() {
			t.Fatalf("Allow() %d = false, want true when disabled", i)
		}
	}

	if got := limiter.Dropped(); got != 0 {
		t.Errorf("Dropped() = %d, want 0", got)
	}
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{
		MaxPerWindow: 2,
		Window:       50 * time.Millisecond,
		Enabled:      true,
	})

	limiter.Allow()
	limiter.Allow()
	if limiter.Allow() {
		t.Fatal("Allow() = true with full window")
	}

	time.Sleep(60 * time.Millisecond)

	if !limiter.Allow() {
		t.Error("Allow() = false after window expired")
	}
}

func TestRateLimiterReset(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{
		MaxPerWindow: 1,
		Window:       time.Minute,
		Enabled:      true,
	})

	limiter.Allow()
	limiter.Allow() // dropped
	limiter.Reset()

	if !limiter.Allow() {
		t.Error("Allow() = false after Reset")
	}

	stats := limiter.Stats()
	if stats.Dropped != 0 {
		t.Errorf("dropped = %d, want 0 after Reset", stats.Dropped)
	}
}

func TestRateLimiterDefaults(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{Enabled: true})

	stats := limiter.Stats()
	if stats.MaxPerWindow != 10 {
		t.Errorf("maxPerWindow = %d, want 10", stats.MaxPerWindow)
	}
	if stats.Window != time.Minute {
		t.Errorf("window = %v, want 1m", stats.Window)
	}
}
