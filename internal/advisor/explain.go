package advisor

import (
	"fmt"
	"strings"

	"github.com/agrisense/agrisense/internal/models"
)

// actionDescriptions are the human-readable summaries per action.
var actionDescriptions = map[models.ActionType]string{
	models.ActionImmediateIrrigationCheck: "Check the irrigation system immediately, a leak or pump failure is likely",
	models.ActionIrrigationCheck:          "Inspect the irrigation system and verify the water supply",
	models.ActionHeatStressMitigation:     "Apply heat stress mitigation, increase irrigation and consider shade",
	models.ActionTemperatureMonitoring:    "Monitor temperature closely and prepare heat mitigation measures",
	models.ActionDiseasePrevention:        "Improve air circulation and inspect crops for fungal disease symptoms",
	models.ActionHumidityManagement:       "Adjust humidity management, monitor crops for stress and wilting",
	models.ActionSensorCheck:              "Check the sensor physically, verify connections and calibration",
	models.ActionManualInspection:         "Verify the anomaly with a manual inspection of the plot",
	models.ActionGeneralMonitoring:        "Continue monitoring, no specific action identified",
}

// Describe returns the one-line summary for an action.
func Describe(action models.ActionType) string {
	if desc, ok := actionDescriptions[action]; ok {
		return desc
	}
	return "Action required"
}

// Explain builds the template explanation for a proposal. The text is
// deterministic so recommendations stay useful when no LLM is wired in.
func Explain(alert *models.Alert, proposal *Proposal) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "On %s, a %s %s anomaly was detected on plot %s (detection confidence %.2f). ",
		alert.DetectedAt.Format("2006-01-02 at 15:04"),
		alert.Severity, alert.SensorType, plotLabel(alert), alert.Confidence)

	if proposal.Reasoning != "" {
		sb.WriteString(capitalize(proposal.Reasoning))
		sb.WriteString(". ")
	}

	switch proposal.Urgency {
	case models.UrgencyHigh:
		sb.WriteString("Immediate action required: ")
	case models.UrgencyMedium:
		sb.WriteString("Recommended action: ")
	default:
		sb.WriteString("Suggested action: ")
	}
	sb.WriteString(Describe(proposal.Action))
	sb.WriteString(". ")

	fmt.Fprintf(&sb, "Advisor confidence: %s (%.2f).",
		confidenceLevel(proposal.Confidence), proposal.Confidence)

	return sb.String()
}

func plotLabel(alert *models.Alert) string {
	if alert.PlotName != "" {
		return alert.PlotName
	}
	return alert.PlotID
}

func confidenceLevel(confidence float64) string {
	switch {
	case confidence >= 0.8:
		return "high"
	case confidence >= 0.6:
		return "moderate"
	default:
		return "low"
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
