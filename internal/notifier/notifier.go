// Package notifier dispatches anomaly alerts to external channels.
package notifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/agrisense/agrisense/internal/metrics"
	"github.com/agrisense/agrisense/internal/models"
)

// Event is a notification payload: the alert plus the advisor's
// recommendation when one was generated in time.
type Event struct {
	Alert          *models.Alert
	Recommendation *models.Recommendation

	// Channels names the notifiers this event should go to. Empty
	// means the event is not sent.
	Channels []string
}

// Notifier is the interface for all notification channels.
type Notifier interface {
	// Name returns the notifier name (e.g., "email", "slack").
	Name() string
	// Send sends an alert notification.
	Send(ctx context.Context, event *Event) error
	// Close releases any resources.
	Close() error
}

// Dispatcher manages multiple notifiers and routes events.
type Dispatcher struct {
	mu          sync.RWMutex
	notifiers   map[string]Notifier
	rateLimiter *RateLimiter
}

// NewDispatcher creates a dispatcher with default rate limiting.
func NewDispatcher() *Dispatcher {
	return NewDispatcherWithRateLimit(DefaultRateLimitConfig())
}

// NewDispatcherWithRateLimit creates a dispatcher with a custom rate
// limit configuration.
func NewDispatcherWithRateLimit(config RateLimitConfig) *Dispatcher {
	return &Dispatcher{
		notifiers:   make(map[string]Notifier),
		rateLimiter: NewRateLimiter(config),
	}
}

// Register adds a notifier to the dispatcher.
func (d *Dispatcher) Register(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifiers[n.Name()] = n
}

// Unregister removes a notifier from the dispatcher.
func (d *Dispatcher) Unregister(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.notifiers, name)
}

// Get returns a notifier by name.
func (d *Dispatcher) Get(name string) (Notifier, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.notifiers[name]
	return n, ok
}

// ErrRateLimited is returned when a notification is dropped due to
// rate limiting.
var ErrRateLimited = fmt.Errorf("notification rate limited")

// Dispatch sends an event to the notifiers named in event.Channels.
// An empty channel list means the event is not sent anywhere.
func (d *Dispatcher) Dispatch(ctx context.Context, event *Event) error {
	if len(event.Channels) == 0 {
		return nil
	}

	if d.rateLimiter != nil && !d.rateLimiter.Allow() {
		return ErrRateLimited
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var errs []error
	for _, name := range event.Channels {
		n, ok := d.notifiers[name]
		if !ok {
			continue
		}
		if err := n.Send(ctx, event); err != nil {
			metrics.NotificationErrors.WithLabelValues(name).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		} else {
			metrics.NotificationsSentTotal.WithLabelValues(name).Inc()
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %v", errs)
	}
	return nil
}

// DispatchAll sends an event to every registered notifier regardless
// of event.Channels.
func (d *Dispatcher) DispatchAll(ctx context.Context, event *Event) error {
	if d.rateLimiter != nil && !d.rateLimiter.Allow() {
		return ErrRateLimited
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var errs []error
	for name, n := range d.notifiers {
		if err := n.Send(ctx, event); err != nil {
			metrics.NotificationErrors.WithLabelValues(name).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		} else {
			metrics.NotificationsSentTotal.WithLabelValues(name).Inc()
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %v", errs)
	}
	return nil
}

// RateLimitStats returns the rate limiter statistics.
func (d *Dispatcher) RateLimitStats() RateLimitStats {
	if d.rateLimiter == nil {
		return RateLimitStats{}
	}
	return d.rateLimiter.Stats()
}

// Close closes all registered notifiers.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for name, n := range d.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	d.notifiers = make(map[string]Notifier)

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
