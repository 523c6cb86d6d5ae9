package models

import "time"

// AnomalyType classifies what the detector found abnormal about a reading.
type AnomalyType string

const (
	// AnomalyThresholdBreach means a value left its configured healthy range.
	AnomalyThresholdBreach AnomalyType = "threshold_breach"
	// AnomalyRapidDrop means a value fell sharply across the recent window.
	AnomalyRapidDrop AnomalyType = "rapid_drop"
	// AnomalySensorMalfunction means the value pattern is physically
	// implausible and the sensor itself is suspect.
	AnomalySensorMalfunction AnomalyType = "sensor_malfunction"
)

// Severity represents alert severity level.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity converts a string to Severity.
func ParseSeverity(s string) Severity {
	switch s {
	case "low":
		return SeverityLow
	case "medium":
		return SeverityMedium
	case "high":
		return SeverityHigh
	case "critical":
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

// rank orders severities for comparison.
func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is equal to or more severe than other.
func (s Severity) AtLeast(other Severity) bool {
	return s.rank() >= other.rank()
}

// Alert is a detected abnormal sensor condition on a plot.
// PlotName is denormalized from the plots table on read.
type Alert struct {
	ID          string      `json:"id"`
	PlotID      string      `json:"plot_id"`
	PlotName    string      `json:"plot_name"`
	SensorType  SensorType  `json:"sensor_type"`
	AnomalyType AnomalyType `json:"anomaly_type"`
	Severity    Severity    `json:"severity"`
	Value       float64     `json:"value"`
	Confidence  float64     `json:"confidence"` // detector confidence, 0-1
	Message     string      `json:"message,omitempty"`
	DetectedAt  time.Time   `json:"detected_at"`
	Resolved    bool        `json:"resolved"`
	ResolvedAt  *time.Time  `json:"resolved_at,omitempty"`
}

// NewAlert creates an unresolved Alert stamped with the current time.
func NewAlert(plotID string, sensorType SensorType, anomalyType AnomalyType, severity Severity, value, confidence float64, message string) *Alert {
	return &Alert{
		PlotID:      plotID,
		SensorType:  sensorType,
		AnomalyType: anomalyType,
		Severity:    severity,
		Value:       value,
		Confidence:  confidence,
		Message:     message,
		DetectedAt:  time.Now(),
	}
}
