package auth

import (
	"sync"
	"time"
)

// lockoutEntry tracks failed login attempts for an account.
type lockoutEntry struct {
	failures  int
	lockedAt  time.Time
	expiresAt time.Time
}

// LockoutTracker tracks failed login attempts and account lockouts.
// State lives in memory only, a restart clears all lockouts.
type LockoutTracker struct {
	mu              sync.RWMutex
	entries         map[string]*lockoutEntry // keyed by username or IP
	threshold       int
	lockoutDuration time.Duration
}

// NewLockoutTracker creates a new lockout tracker.
func NewLockoutTracker(threshold int, duration time.Duration) *LockoutTracker {
	tracker := &LockoutTracker{
		entries:         make(map[string]*lockoutEntry),
		threshold:       threshold,
		lockoutDuration: duration,
	}

	go tracker.cleanupLoop()

	return tracker
}

// RecordFailure records a failed login attempt.
// Returns true if the account is now locked.
func (t *LockoutTracker) RecordFailure(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, exists := t.entries[key]
	if !exists {
		entry = &lockoutEntry{}
		t.entries[key] = entry
	}

	// Already locked and not expired
	if !entry.lockedAt.IsZero() && time.Now().Before(entry.expiresAt) {
		return true
	}

	// Lockout expired, start over
	if !entry.lockedAt.IsZero() && time.Now().After(entry.expiresAt) {
		entry.failures = 0
		entry.lockedAt = time.Time{}
		entry.expiresAt = time.Time{}
	}

	entry.failures++

	if entry.failures >= t.threshold {
		now := time.Now()
		entry.lockedAt = now
		entry.expiresAt = now.Add(t.lockoutDuration)
		return true
	}

	return false
}

// IsLocked returns true if the account is currently locked.
func (t *LockoutTracker) IsLocked(key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, exists := t.entries[key]
	if !exists {
		return false
	}

	if entry.lockedAt.IsZero() {
		return false
	}

	if time.Now().After(entry.expiresAt) {
		return false
	}

	return true
}

// RemainingLockoutTime returns how long until the lockout expires.
func (t *LockoutTracker) RemainingLockoutTime(key string) time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, exists := t.entries[key]
	if !exists || entry.lockedAt.IsZero() {
		return 0
	}

	remaining := time.Until(entry.expiresAt)
	if remaining < 0 {
		return 0
	}

	return remaining
}

// ClearFailures clears failed attempts on successful login.
func (t *LockoutTracker) ClearFailures(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.entries, key)
}

// cleanupLoop periodically removes expired entries.
func (t *LockoutTracker) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		t.cleanup()
	}
}

func (t *LockoutTracker) cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	for key, entry := range t.entries {
		if entry.failures == 0 || (!entry.lockedAt.IsZero() && now.After(entry.expiresAt)) {
			delete(t.entries, key)
		}
	}
}
