package notifier

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/agrisense/agrisense/internal/models"
)

//go:embed templates/*
var templateFS embed.FS

// Templates holds parsed email templates.
type Templates struct {
	html  *template.Template
	plain *template.Template
}

// TemplateData contains data for template rendering.
type TemplateData struct {
	PlotName       string
	SensorType     string
	AnomalyType    string
	Severity       string
	SeverityColor  string
	Value          string
	Message        string
	DetectedAt     string
	Confidence     string
	Recommendation *RecommendationData
}

// RecommendationData contains advisor output for templates.
type RecommendationData struct {
	Action      string
	Urgency     string
	Explanation string
}

// LoadTemplates loads embedded email templates.
func LoadTemplates() (*Templates, error) {
	funcs := template.FuncMap{
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
	}

	htmlTmpl, err := template.New("alert.html").Funcs(funcs).ParseFS(templateFS, "templates/alert.html")
	if err != nil {
		return nil, err
	}

	plainTmpl, err := template.New("alert.txt").Funcs(funcs).ParseFS(templateFS, "templates/alert.txt")
	if err != nil {
		return nil, err
	}

	return &Templates{
		html:  htmlTmpl,
		plain: plainTmpl,
	}, nil
}

// RenderHTML renders the HTML email body.
func (t *Templates) RenderHTML(data *TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := t.html.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderPlain renders the plain text email body.
func (t *Templates) RenderPlain(data *TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := t.plain.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// severityColor returns the color for a severity level.
func severityColor(severity models.Severity) string {
	switch severity {
	case models.SeverityCritical:
		return "#d32f2f" // red
	case models.SeverityHigh:
		return "#f57c00" // orange
	case models.SeverityMedium:
		return "#fbc02d" // yellow
	case models.SeverityLow:
		return "#388e3c" // green
	default:
		return "#757575" // gray
	}
}

// EventToTemplateData converts a notification event to template data.
func EventToTemplateData(event *Event) *TemplateData {
	alert := event.Alert

	plot := alert.PlotName
	if plot == "" {
		plot = alert.PlotID
	}

	data := &TemplateData{
		PlotName:      plot,
		SensorType:    string(alert.SensorType),
		AnomalyType:   string(alert.AnomalyType),
		Severity:      string(alert.Severity),
		SeverityColor: severityColor(alert.Severity),
		Value:         fmt.Sprintf("%.2f%s", alert.Value, alert.SensorType.Unit()),
		Message:       alert.Message,
		DetectedAt:    alert.DetectedAt.Format("2006-01-02 15:04:05 MST"),
		Confidence:    fmt.Sprintf("%.2f", alert.Confidence),
	}

	if rec := event.Recommendation; rec != nil {
		data.Recommendation = &RecommendationData{
			Action:      string(rec.ActionType),
			Urgency:     string(rec.Urgency),
			Explanation: rec.Explanation,
		}
	}

	return data
}
