// Package advisor turns anomaly alerts into actionable recommendations
// using prioritized agronomy rules, with an optional LLM pass that
// rewrites the explanation text.
package advisor

import (
	"fmt"

	"github.com/agrisense/agrisense/internal/models"
)

// Proposal is a candidate recommendation produced by a rule.
// Confidence is 0-1 at this stage.
type Proposal struct {
	Action     models.ActionType
	Urgency    models.Urgency
	Confidence float64
	Reasoning  string
}

// Rule evaluates an alert and proposes an action, or nil when the rule
// does not apply. Higher priority wins when several rules fire.
type Rule interface {
	Name() string
	Priority() int
	Evaluate(alert *models.Alert) *Proposal
}

// DefaultRules returns the built-in rule set, sorted by priority.
func DefaultRules() []Rule {
	return []Rule{
		irrigationFailureRule{},
		heatStressRule{},
		humidityAnomalyRule{},
		sensorMalfunctionRule{},
		lowConfidenceRule{},
	}
}

// irrigationFailureRule maps moisture anomalies to irrigation checks.
// A rapid drop is the signature of a leak or pump failure.
type irrigationFailureRule struct{}

func (irrigationFailureRule) Name() string  { return "irrigation_failure" }
func (irrigationFailureRule) Priority() int { return 9 }

func (irrigationFailureRule) Evaluate(alert *models.Alert) *Proposal {
	if alert.SensorType != models.SensorMoisture {
		return nil
	}
	if alert.AnomalyType == models.AnomalySensorMalfunction {
		return nil
	}
	if !alert.Severity.AtLeast(models.SeverityHigh) {
		return nil
	}

	if alert.AnomalyType == models.AnomalyRapidDrop {
		confidence := alert.Confidence + 0.1
		if confidence > 0.95 {
			confidence = 0.95
		}
		return &Proposal{
			Action:     models.ActionImmediateIrrigationCheck,
			Urgency:    models.UrgencyHigh,
			Confidence: confidence,
			Reasoning:  "soil moisture dropped rapidly, which points at a leak or pump failure",
		}
	}

	return &Proposal{
		Action:     models.ActionIrrigationCheck,
		Urgency:    models.UrgencyMedium,
		Confidence: alert.Confidence,
		Reasoning:  "abnormal soil moisture levels detected",
	}
}

// heatStressRule maps temperature anomalies to heat mitigation.
type heatStressRule struct{}

func (heatStressRule) Name() string  { return "heat_stress" }
func (heatStressRule) Priority() int { return 8 }

func (heatStressRule) Evaluate(alert *models.Alert) *Proposal {
	if alert.SensorType != models.SensorTemperature {
		return nil
	}
	if alert.AnomalyType == models.AnomalySensorMalfunction {
		return nil
	}

	switch {
	case alert.Severity == models.SeverityCritical:
		return &Proposal{
			Action:     models.ActionHeatStressMitigation,
			Urgency:    models.UrgencyHigh,
			Confidence: alert.Confidence,
			Reasoning:  "critical temperature levels detected",
		}
	case alert.Severity == models.SeverityHigh || alert.Severity == models.SeverityMedium:
		return &Proposal{
			Action:     models.ActionTemperatureMonitoring,
			Urgency:    models.UrgencyMedium,
			Confidence: alert.Confidence,
			Reasoning:  "elevated temperature levels detected",
		}
	default:
		return nil
	}
}

// humidityAnomalyRule distinguishes disease risk (too humid) from crop
// stress (too dry).
type humidityAnomalyRule struct{}

func (humidityAnomalyRule) Name() string  { return "humidity_anomaly" }
func (humidityAnomalyRule) Priority() int { return 7 }

func (humidityAnomalyRule) Evaluate(alert *models.Alert) *Proposal {
	if alert.SensorType != models.SensorHumidity {
		return nil
	}
	if alert.AnomalyType == models.AnomalySensorMalfunction {
		return nil
	}

	switch {
	case alert.Value > 85:
		return &Proposal{
			Action:     models.ActionDiseasePrevention,
			Urgency:    models.UrgencyMedium,
			Confidence: alert.Confidence,
			Reasoning:  fmt.Sprintf("humidity at %.1f%% increases fungal disease risk", alert.Value),
		}
	case alert.Value < 30:
		return &Proposal{
			Action:     models.ActionHumidityManagement,
			Urgency:    models.UrgencyMedium,
			Confidence: alert.Confidence,
			Reasoning:  fmt.Sprintf("humidity at %.1f%% may cause crop stress", alert.Value),
		}
	default:
		return &Proposal{
			Action:     models.ActionHumidityManagement,
			Urgency:    models.UrgencyLow,
			Confidence: alert.Confidence,
			Reasoning:  "abnormal humidity patterns detected",
		}
	}
}

// sensorMalfunctionRule sends suspect sensors for a physical check.
type sensorMalfunctionRule struct{}

func (sensorMalfunctionRule) Name() string  { return "sensor_malfunction" }
func (sensorMalfunctionRule) Priority() int { return 6 }

func (sensorMalfunctionRule) Evaluate(alert *models.Alert) *Proposal {
	if alert.AnomalyType != models.AnomalySensorMalfunction {
		return nil
	}
	return &Proposal{
		Action:     models.ActionSensorCheck,
		Urgency:    models.UrgencyHigh,
		Confidence: 0.8,
		Reasoning:  "readings are physically implausible, the sensor itself is the likely fault",
	}
}

// lowConfidenceRule asks for manual verification when the detector was
// unsure.
type lowConfidenceRule struct{}

func (lowConfidenceRule) Name() string  { return "low_confidence" }
func (lowConfidenceRule) Priority() int { return 3 }

func (lowConfidenceRule) Evaluate(alert *models.Alert) *Proposal {
	if alert.Confidence < 0.4 || alert.Confidence > 0.6 {
		return nil
	}
	return &Proposal{
		Action:     models.ActionManualInspection,
		Urgency:    models.UrgencyLow,
		Confidence: alert.Confidence,
		Reasoning:  "detection confidence is low, manual verification needed",
	}
}
