package advisor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/agrisense/agrisense/internal/models"
)

type mockRecommendationRepo struct {
	created   []*models.Recommendation
	createErr error
}

func (m *mockRecommendationRepo) Create(ctx context.Context, rec *models.Recommendation) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, rec)
	return nil
}

func (m *mockRecommendationRepo) ListByAlert(ctx context.Context, alertID string) ([]*models.Recommendation, error) {
	return m.created, nil
}

func (m *mockRecommendationRepo) DeleteByAlert(ctx context.Context, alertID string) error {
	return nil
}

func testAlert(sensorType models.SensorType, anomaly models.AnomalyType, severity models.Severity, value, confidence float64) *models.Alert {
	alert := models.NewAlert("plot-1", sensorType, anomaly, severity, value, confidence, "test anomaly")
	alert.ID = "alert-1"
	alert.PlotName = "north-field"
	return alert
}

func TestAdvisor_Propose(t *testing.T) {
	tests := []struct {
		name        string
		alert       *models.Alert
		wantAction  models.ActionType
		wantUrgency models.Urgency
	}{
		{
			name:        "rapid moisture drop",
			alert:       testAlert(models.SensorMoisture, models.AnomalyRapidDrop, models.SeverityHigh, 40, 0.85),
			wantAction:  models.ActionImmediateIrrigationCheck,
			wantUrgency: models.UrgencyHigh,
		},
		{
			name:        "severe moisture breach",
			alert:       testAlert(models.SensorMoisture, models.AnomalyThresholdBreach, models.SeverityCritical, 2, 0.9),
			wantAction:  models.ActionIrrigationCheck,
			wantUrgency: models.UrgencyMedium,
		},
		{
			name:        "critical temperature",
			alert:       testAlert(models.SensorTemperature, models.AnomalyThresholdBreach, models.SeverityCritical, 58, 0.9),
			wantAction:  models.ActionHeatStressMitigation,
			wantUrgency: models.UrgencyHigh,
		},
		{
			name:        "elevated temperature",
			alert:       testAlert(models.SensorTemperature, models.AnomalyThresholdBreach, models.SeverityMedium, 52, 0.7),
			wantAction:  models.ActionTemperatureMonitoring,
			wantUrgency: models.UrgencyMedium,
		},
		{
			name:        "very high humidity",
			alert:       testAlert(models.SensorHumidity, models.AnomalyThresholdBreach, models.SeverityMedium, 92, 0.8),
			wantAction:  models.ActionDiseasePrevention,
			wantUrgency: models.UrgencyMedium,
		},
		{
			name:        "very low humidity",
			alert:       testAlert(models.SensorHumidity, models.AnomalyThresholdBreach, models.SeverityMedium, 25, 0.8),
			wantAction:  models.ActionHumidityManagement,
			wantUrgency: models.UrgencyMedium,
		},
		{
			name:        "sensor malfunction",
			alert:       testAlert(models.SensorMoisture, models.AnomalySensorMalfunction, models.SeverityHigh, 150, 0.8),
			wantAction:  models.ActionSensorCheck,
			wantUrgency: models.UrgencyHigh,
		},
		{
			name:        "low confidence detection",
			alert:       testAlert(models.SensorMoisture, models.AnomalyThresholdBreach, models.SeverityLow, 4, 0.5),
			wantAction:  models.ActionManualInspection,
			wantUrgency: models.UrgencyLow,
		},
		{
			name:        "no specific rule",
			alert:       testAlert(models.SensorMoisture, models.AnomalyThresholdBreach, models.SeverityLow, 4, 0.9),
			wantAction:  models.ActionGeneralMonitoring,
			wantUrgency: models.UrgencyLow,
		},
	}

	a := New(&mockRecommendationRepo{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proposal := a.Propose(tt.alert)
			if proposal.Action != tt.wantAction {
				t.Errorf("action = %v, want %v", proposal.Action, tt.wantAction)
			}
			if proposal.Urgency != tt.wantUrgency {
				t.Errorf("urgency = %v, want %v", proposal.Urgency, tt.wantUrgency)
			}
		})
	}
}

func TestAdvisor_PriorityOrder(t *testing.T) {
	// A severe rapid moisture drop with confidence 0.5 matches both
	// the irrigation rule (priority 9) and the low-confidence rule
	// (priority 3). The higher priority rule must win.
	a := New(&mockRecommendationRepo{})
	alert := testAlert(models.SensorMoisture, models.AnomalyRapidDrop, models.SeverityHigh, 40, 0.5)

	proposal := a.Propose(alert)
	if proposal.Action != models.ActionImmediateIrrigationCheck {
		t.Errorf("action = %v, want immediate_irrigation_check", proposal.Action)
	}
}

func TestAdvisor_Recommend(t *testing.T) {
	repo := &mockRecommendationRepo{}
	a := New(repo)

	alert := testAlert(models.SensorMoisture, models.AnomalyRapidDrop, models.SeverityHigh, 40, 0.85)
	rec, err := a.Recommend(context.Background(), alert)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}

	if rec.AlertID != alert.ID {
		t.Errorf("alert_id = %v, want %v", rec.AlertID, alert.ID)
	}
	if rec.ActionType != models.ActionImmediateIrrigationCheck {
		t.Errorf("action = %v, want immediate_irrigation_check", rec.ActionType)
	}
	// Proposal confidence 0.95 becomes a percentage.
	if rec.Confidence != 95 {
		t.Errorf("confidence = %v, want 95", rec.Confidence)
	}
	if len(repo.created) != 1 {
		t.Errorf("created = %d recommendations, want 1", len(repo.created))
	}
	if !strings.Contains(rec.Explanation, "north-field") {
		t.Errorf("explanation should name the plot, got %q", rec.Explanation)
	}
	if !strings.Contains(rec.Explanation, "Immediate action required") {
		t.Errorf("explanation should carry the urgency prefix, got %q", rec.Explanation)
	}
}

type stubRewriter struct {
	text string
	err  error
}

func (s *stubRewriter) Rewrite(ctx context.Context, alert *models.Alert, explanation string) (string, error) {
	return s.text, s.err
}

func TestAdvisor_RewriterApplied(t *testing.T) {
	repo := &mockRecommendationRepo{}
	a := New(repo, WithRewriter(&stubRewriter{text: "Check your irrigation lines today."}))

	alert := testAlert(models.SensorMoisture, models.AnomalyRapidDrop, models.SeverityHigh, 40, 0.85)
	rec, err := a.Recommend(context.Background(), alert)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if rec.Explanation != "Check your irrigation lines today." {
		t.Errorf("explanation = %q, want rewritten text", rec.Explanation)
	}
}

func TestAdvisor_RewriterFallback(t *testing.T) {
	repo := &mockRecommendationRepo{}
	a := New(repo, WithRewriter(&stubRewriter{err: errors.New("api unreachable")}))

	alert := testAlert(models.SensorMoisture, models.AnomalyRapidDrop, models.SeverityHigh, 40, 0.85)
	rec, err := a.Recommend(context.Background(), alert)
	if err != nil {
		t.Fatalf("recommend should not fail when the rewriter does: %v", err)
	}
	if !strings.Contains(rec.Explanation, "Immediate action required") {
		t.Errorf("explanation should fall back to the template, got %q", rec.Explanation)
	}
}

func TestAdvisor_Run(t *testing.T) {
	repo := &mockRecommendationRepo{}
	a := New(repo)

	alerts := make(chan *models.Alert, 2)
	alerts <- testAlert(models.SensorTemperature, models.AnomalyThresholdBreach, models.SeverityCritical, 58, 0.9)
	alerts <- testAlert(models.SensorHumidity, models.AnomalyThresholdBreach, models.SeverityMedium, 92, 0.8)
	close(alerts)

	a.Run(context.Background(), alerts)

	if len(repo.created) != 2 {
		t.Errorf("created = %d recommendations, want 2", len(repo.created))
	}
}
