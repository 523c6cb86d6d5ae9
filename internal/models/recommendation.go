package models

import "time"

// ActionType identifies the recommended response to an anomaly.
type ActionType string

const (
	ActionImmediateIrrigationCheck ActionType = "immediate_irrigation_check"
	ActionIrrigationCheck          ActionType = "irrigation_check"
	ActionHeatStressMitigation     ActionType = "heat_stress_mitigation"
	ActionTemperatureMonitoring    ActionType = "temperature_monitoring"
	ActionDiseasePrevention        ActionType = "disease_prevention"
	ActionHumidityManagement       ActionType = "humidity_management"
	ActionSensorCheck              ActionType = "sensor_check"
	ActionManualInspection         ActionType = "manual_inspection"
	ActionGeneralMonitoring        ActionType = "general_monitoring"
)

// Urgency indicates how quickly a recommended action should be taken.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Recommendation is the advisor's suggested action for a single alert,
// with a human-readable explanation. Confidence is a percentage (0-100).
type Recommendation struct {
	ID          string     `json:"id"`
	AlertID     string     `json:"alert_id"`
	ActionType  ActionType `json:"action_type"`
	Explanation string     `json:"explanation"`
	Confidence  float64    `json:"confidence"`
	Urgency     Urgency    `json:"urgency"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewRecommendation creates a Recommendation stamped with the current time.
func NewRecommendation(alertID string, action ActionType, explanation string, confidence float64, urgency Urgency) *Recommendation {
	return &Recommendation{
		AlertID:     alertID,
		ActionType:  action,
		Explanation: explanation,
		Confidence:  confidence,
		Urgency:     urgency,
		CreatedAt:   time.Now(),
	}
}
