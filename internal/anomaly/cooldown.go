package anomaly

import (
	"sync"
	"time"
)

// CooldownManager tracks alert cooldowns to prevent repeat alerts for
// the same anomaly.
type CooldownManager struct {
	mu        sync.RWMutex
	cooldowns map[string]time.Time
}

// NewCooldownManager creates a new cooldown manager.
func NewCooldownManager() *CooldownManager {
	return &CooldownManager{
		cooldowns: make(map[string]time.Time),
	}
}

// IsOnCooldown checks whether a key is currently on cooldown.
func (cm *CooldownManager) IsOnCooldown(key string, now time.Time) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	expiresAt, ok := cm.cooldowns[key]
	if !ok {
		return false
	}
	return now.Before(expiresAt)
}

// SetCooldown arms a cooldown for a key.
func (cm *CooldownManager) SetCooldown(key string, duration time.Duration, now time.Time) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.cooldowns[key] = now.Add(duration)
}

// Clear removes the cooldown for a key.
func (cm *CooldownManager) Clear(key string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	delete(cm.cooldowns, key)
}

// ClearAll removes all cooldowns.
func (cm *CooldownManager) ClearAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.cooldowns = make(map[string]time.Time)
}
