package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agrisense/agrisense/internal/models"
)

// mockNotifier is a test notifier that can be configured to fail.
type mockNotifier struct {
	name      string
	shouldErr bool
	sendCount int
	lastEvent *Event
	closed    bool
}

func (m *mockNotifier) Name() string {
	return m.name
}

func (m *mockNotifier) Send(ctx context.Context, event *Event) error {
	m.sendCount++
	m.lastEvent = event
	if m.shouldErr {
		return errors.New("mock send error")
	}
	return nil
}

func (m *mockNotifier) Close() error {
	m.closed = true
	return nil
}

func testEvent(channels ...string) *Event {
	alert := models.NewAlert("plot-1", models.SensorMoisture, models.AnomalyRapidDrop,
		models.SeverityHigh, 12.5, 0.85, "soil moisture dropped 18.3% within the detection window")
	alert.PlotName = "north-field"
	return &Event{
		Alert:    alert,
		Channels: channels,
	}
}

func TestDispatchRoutesByChannel(t *testing.T) {
	dispatcher := NewDispatcher()
	defer dispatcher.Close()

	slack := &mockNotifier{name: "slack"}
	email := &mockNotifier{name: "email"}
	dispatcher.Register(slack)
	dispatcher.Register(email)

	if err := dispatcher.Dispatch(context.Background(), testEvent("slack")); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if slack.sendCount != 1 {
		t.Errorf("slack sendCount = %d, want 1", slack.sendCount)
	}
	if email.sendCount != 0 {
		t.Errorf("email sendCount = %d, want 0", email.sendCount)
	}
}

func TestDispatchEmptyChannelsIsNoOp(t *testing.T) {
	dispatcher := NewDispatcher()
	defer dispatcher.Close()

	slack := &mockNotifier{name: "slack"}
	dispatcher.Register(slack)

	if err := dispatcher.Dispatch(context.Background(), testEvent()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if slack.sendCount != 0 {
		t.Errorf("sendCount = %d, want 0 for empty channel list", slack.sendCount)
	}

	// An event with no channels must not consume a rate limit slot.
	stats := dispatcher.RateLimitStats()
	if stats.CurrentCount != 0 {
		t.Errorf("current count = %d, want 0", stats.CurrentCount)
	}
}

func TestDispatchUnknownChannelIsIgnored(t *testing.T) {
	dispatcher := NewDispatcher()
	defer dispatcher.Close()

	slack := &mockNotifier{name: "slack"}
	dispatcher.Register(slack)

	if err := dispatcher.Dispatch(context.Background(), testEvent("pager", "slack")); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if slack.sendCount != 1 {
		t.Errorf("slack sendCount = %d, want 1", slack.sendCount)
	}
}

func TestDispatchCollectsSendErrors(t *testing.T) {
	dispatcher := NewDispatcher()
	defer dispatcher.Close()

	failing := &mockNotifier{name: "slack", shouldErr: true}
	ok := &mockNotifier{name: "email"}
	dispatcher.Register(failing)
	dispatcher.Register(ok)

	err := dispatcher.Dispatch(context.Background(), testEvent("slack", "email"))
	if err == nil {
		t.Fatal("expected error from failing notifier")
	}

	// The healthy channel still gets the event.
	if ok.sendCount != 1 {
		t.Errorf("email sendCount = %d, want 1", ok.sendCount)
	}
}

func TestDispatchRateLimiting(t *testing.T) {
	config := RateLimitConfig{
		MaxPerWindow: 2,
		Window:       time.Minute,
		Enabled:      true,
	}
	dispatcher := NewDispatcherWithRateLimit(config)
	defer dispatcher.Close()

	slack := &mockNotifier{name: "slack"}
	dispatcher.Register(slack)

	for i := 0; i < 2; i++ {
		if err := dispatcher.Dispatch(context.Background(), testEvent("slack")); err != nil {
			t.Fatalf("Dispatch() %d error = %v", i, err)
		}
	}

	err := dispatcher.Dispatch(context.Background(), testEvent("slack"))
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Dispatch() error = %v, want ErrRateLimited", err)
	}

	if slack.sendCount != 2 {
		t.Errorf("sendCount = %d, want 2", slack.sendCount)
	}

	stats := dispatcher.RateLimitStats()
	if stats.Dropped != 1 {
		t.Errorf("dropped = %d, want 1", stats.Dropped)
	}
}

func TestDispatchAllIgnoresChannels(t *testing.T) {
	dispatcher := NewDispatcher()
	defer dispatcher.Close()

	slack := &mockNotifier{name: "slack"}
	email := &mockNotifier{name: "email"}
	dispatcher.Register(slack)
	dispatcher.Register(email)

	if err := dispatcher.DispatchAll(context.Background(), testEvent()); err != nil {
		t.Fatalf("DispatchAll() error = %v", err)
	}

	if slack.sendCount != 1 || email.sendCount != 1 {
		t.Errorf("sendCounts = %d/%d, want 1/1", slack.sendCount, email.sendCount)
	}
}

func TestDispatcherCloseClosesNotifiers(t *testing.T) {
	dispatcher := NewDispatcher()

	slack := &mockNotifier{name: "slack"}
	dispatcher.Register(slack)

	if err := dispatcher.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !slack.closed {
		t.Error("notifier was not closed")
	}

	if _, ok := dispatcher.Get("slack"); ok {
		t.Error("notifier still registered after Close")
	}
}

func TestDispatcherUnregister(t *testing.T) {
	dispatcher := NewDispatcher()
	defer dispatcher.Close()

	slack := &mockNotifier{name: "slack"}
	dispatcher.Register(slack)
	dispatcher.Unregister("slack")

	if err := dispatcher.Dispatch(context.Background(), testEvent("slack")); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if slack.sendCount != 0 {
		t.Errorf("sendCount = %d, want 0 after Unregister", slack.sendCount)
	}
}
