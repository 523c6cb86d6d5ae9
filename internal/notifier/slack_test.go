package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agrisense/agrisense/internal/models"
)

func TestSlackConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  SlackConfig
		wantErr bool
		errMsg  string
	}{
		{
			name:    "empty config",
			config:  SlackConfig{},
			wantErr: true,
			errMsg:  "webhook URL is required",
		},
		{
			name: "http URL rejected",
			config: SlackConfig{
				WebhookURL: "http://hooks.slack.com/services/xxx",
			},
			wantErr: true,
			errMsg:  "webhook URL must use HTTPS",
		},
		{
			name: "valid config",
			config: SlackConfig{
				WebhookURL: "https://hooks.slack.com/services/T00/B00/xxx",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error containing %q, got nil", tt.errMsg)
				} else if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("expected error containing %q, got %q", tt.errMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSlackNotifierName(t *testing.T) {
	notifier := &SlackNotifier{}
	if got := notifier.Name(); got != "slack" {
		t.Errorf("Name() = %q, want %q", got, "slack")
	}
}

func TestSlackNotifierSend(t *testing.T) {
	var receivedPayload slackMessage

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST method, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}

		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &receivedPayload); err != nil {
			t.Errorf("failed to unmarshal payload: %v", err)
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	// Use test server URL (allow non-HTTPS for testing)
	notifier := &SlackNotifier{
		config: SlackConfig{
			WebhookURL: server.URL,
		},
		httpClient: server.Client(),
	}

	event := testEvent("slack")
	if err := notifier.Send(context.Background(), event); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(receivedPayload.Blocks) == 0 {
		t.Fatal("expected blocks in payload")
	}

	header := receivedPayload.Blocks[0]
	if header.Type != "header" {
		t.Errorf("first block type = %q, want %q", header.Type, "header")
	}
	if header.Text == nil {
		t.Fatal("header text is nil")
	}
	if !strings.Contains(header.Text.Text, "north-field") {
		t.Errorf("header missing plot name, got %q", header.Text.Text)
	}
	if !strings.Contains(header.Text.Text, "rapid_drop") {
		t.Errorf("header missing anomaly type, got %q", header.Text.Text)
	}
}

func TestSlackNotifierSendWithRecommendation(t *testing.T) {
	var receivedPayload slackMessage

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &receivedPayload)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := &SlackNotifier{
		config:     SlackConfig{WebhookURL: server.URL},
		httpClient: server.Client(),
	}

	event := testEvent("slack")
	event.Recommendation = models.NewRecommendation(event.Alert.ID,
		models.ActionImmediateIrrigationCheck,
		"Check the irrigation line feeding north-field for blockages or leaks.",
		95.0, models.UrgencyHigh)

	if err := notifier.Send(context.Background(), event); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	found := false
	for _, block := range receivedPayload.Blocks {
		if block.Text != nil && strings.Contains(block.Text.Text, "irrigation line") {
			found = true
			break
		}
	}
	if !found {
		t.Error("recommendation not found in payload")
	}

	// Detection confidence rides in a context block.
	foundConfidence := false
	for _, block := range receivedPayload.Blocks {
		if block.Type == "context" {
			for _, elem := range block.Elements {
				if strings.Contains(elem.Text, "0.85") {
					foundConfidence = true
				}
			}
		}
	}
	if !foundConfidence {
		t.Error("detection confidence not found in context block")
	}
}

func TestSlackNotifierSendServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	notifier := &SlackNotifier{
		config:     SlackConfig{WebhookURL: server.URL},
		httpClient: server.Client(),
	}

	err := notifier.Send(context.Background(), testEvent("slack"))
	if err == nil {
		t.Fatal("expected error on non-200 response")
	}
	if !strings.Contains(err.Error(), "status 500") {
		t.Errorf("error = %v, want status 500 mention", err)
	}
}
