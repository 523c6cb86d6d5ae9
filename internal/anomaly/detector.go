package anomaly

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/agrisense/agrisense/internal/metrics"
	"github.com/agrisense/agrisense/internal/models"
)

// Detector evaluates sensor readings against anomaly rules. Each plot
// and sensor type pair gets its own sliding window of recent values.
type Detector struct {
	thresholds Thresholds
	opts       *DetectorOptions

	windows  *WindowManager
	cooldown *CooldownManager

	// alerts is the channel where detected anomalies are sent.
	alerts chan *models.Alert

	closed atomic.Bool
	stats  *DetectorStats
}

// DetectorStats tracks detector statistics using atomic counters.
type DetectorStats struct {
	ReadingsEvaluated atomic.Int64
	ThresholdBreaches atomic.Int64
	RapidDrops        atomic.Int64
	Malfunctions      atomic.Int64
	AlertsSuppressed  atomic.Int64
	AlertsDropped     atomic.Int64
}

// DetectorOptions configures the detector.
type DetectorOptions struct {
	// Window is the sliding window duration for drop detection.
	Window time.Duration

	// DropPercent is the relative moisture drop within the window
	// that signals an irrigation problem.
	DropPercent float64

	// SpikeDelta is the jump between consecutive readings that
	// signals a malfunctioning sensor.
	SpikeDelta float64

	// Cooldown suppresses repeat alerts for the same plot, sensor
	// and anomaly type.
	Cooldown time.Duration

	// AlertBufferSize is the size of the alert channel buffer.
	AlertBufferSize int
}

// DefaultDetectorOptions returns default detector options.
func DefaultDetectorOptions() *DetectorOptions {
	return &DetectorOptions{
		Window:          30 * time.Minute,
		DropPercent:     10,
		SpikeDelta:      50,
		Cooldown:        15 * time.Minute,
		AlertBufferSize: 100,
	}
}

// NewDetector creates a detector with the given thresholds.
func NewDetector(thresholds Thresholds, opts *DetectorOptions) *Detector {
	if thresholds == nil {
		thresholds = DefaultThresholds()
	}
	if opts == nil {
		opts = DefaultDetectorOptions()
	}

	return &Detector{
		thresholds: thresholds,
		opts:       opts,
		windows:    NewWindowManager(opts.Window),
		cooldown:   NewCooldownManager(),
		alerts:     make(chan *models.Alert, opts.AlertBufferSize),
		stats:      &DetectorStats{},
	}
}

// Alerts returns the channel where detected anomalies are sent.
func (d *Detector) Alerts() <-chan *models.Alert {
	return d.alerts
}

// Evaluate evaluates a single reading against all rules.
func (d *Detector) Evaluate(reading *models.SensorReading) []*models.Alert {
	return d.EvaluateAt(reading, time.Now())
}

// EvaluateAt evaluates a reading at a specific time (useful for testing).
// The reading is added to its window after evaluation so drop and spike
// rules compare against prior readings only.
func (d *Detector) EvaluateAt(reading *models.SensorReading, now time.Time) []*models.Alert {
	d.stats.ReadingsEvaluated.Add(1)
	metrics.DetectorEvaluationsTotal.Inc()

	key := windowKey(reading.PlotID, reading.Type)
	window := d.windows.GetOrCreate(key)

	var alerts []*models.Alert

	if alert := d.checkMalfunction(reading, window, now); alert != nil {
		alerts = append(alerts, alert)
		// A malfunctioning sensor's value should not feed the other
		// rules or pollute the window.
		d.emit(alerts)
		return alerts
	}

	if alert := d.checkThreshold(reading, now); alert != nil {
		alerts = append(alerts, alert)
	}
	if alert := d.checkRapidDrop(reading, window, now); alert != nil {
		alerts = append(alerts, alert)
	}

	window.AddAt(now, reading.Value)

	d.emit(alerts)
	return alerts
}

// checkMalfunction flags physically impossible values and large jumps
// between consecutive readings.
func (d *Detector) checkMalfunction(reading *models.SensorReading, window *SlidingWindow, now time.Time) *models.Alert {
	impossible := models.ValidateValue(reading.Type, reading.Value) != nil

	var spike bool
	if last, ok := window.Last(); ok {
		delta := reading.Value - last
		if delta < 0 {
			delta = -delta
		}
		spike = delta > d.opts.SpikeDelta
	}

	if !impossible && !spike {
		return nil
	}

	d.stats.Malfunctions.Add(1)

	if d.onCooldown(reading, models.AnomalySensorMalfunction, now) {
		return nil
	}

	message := fmt.Sprintf("%s sensor reported an impossible value %.2f", reading.Type, reading.Value)
	if !impossible {
		message = fmt.Sprintf("%s sensor jumped more than %.0f between consecutive readings", reading.Type, d.opts.SpikeDelta)
	}

	alert := models.NewAlert(reading.PlotID, reading.Type, models.AnomalySensorMalfunction,
		models.SeverityHigh, reading.Value, 0.8, message)
	alert.DetectedAt = now
	return alert
}

// checkThreshold flags values outside the configured operating range.
func (d *Detector) checkThreshold(reading *models.SensorReading, now time.Time) *models.Alert {
	rng, ok := d.thresholds[reading.Type]
	if !ok || rng.Contains(reading.Value) {
		return nil
	}

	d.stats.ThresholdBreaches.Add(1)

	if d.onCooldown(reading, models.AnomalyThresholdBreach, now) {
		return nil
	}

	deviation := deviationFraction(reading.Value, rng)
	severity := severityForDeviation(deviation)
	confidence := 0.5 + deviation
	if confidence > 0.95 {
		confidence = 0.95
	}

	side := "below"
	bound := rng.Min
	if reading.Value > rng.Max {
		side = "above"
		bound = rng.Max
	}
	message := fmt.Sprintf("%s %.2f%s is %s the operating limit of %.2f%s",
		reading.Type, reading.Value, reading.Type.Unit(), side, bound, reading.Type.Unit())

	alert := models.NewAlert(reading.PlotID, reading.Type, models.AnomalyThresholdBreach,
		severity, reading.Value, confidence, message)
	alert.DetectedAt = now
	return alert
}

// checkRapidDrop flags a fast relative moisture drop within the window,
// the signature of a failed irrigation line.
func (d *Detector) checkRapidDrop(reading *models.SensorReading, window *SlidingWindow, now time.Time) *models.Alert {
	if reading.Type != models.SensorMoisture {
		return nil
	}

	max, ok := window.Max(now)
	if !ok || max <= 0 {
		return nil
	}

	dropPercent := (max - reading.Value) / max * 100
	if dropPercent <= d.opts.DropPercent {
		return nil
	}

	d.stats.RapidDrops.Add(1)

	if d.onCooldown(reading, models.AnomalyRapidDrop, now) {
		return nil
	}

	message := fmt.Sprintf("moisture dropped %.1f%% within %s (from %.2f to %.2f)",
		dropPercent, d.opts.Window, max, reading.Value)

	alert := models.NewAlert(reading.PlotID, reading.Type, models.AnomalyRapidDrop,
		models.SeverityHigh, reading.Value, 0.85, message)
	alert.DetectedAt = now
	return alert
}

// onCooldown checks and arms the cooldown for an anomaly key.
func (d *Detector) onCooldown(reading *models.SensorReading, anomaly models.AnomalyType, now time.Time) bool {
	key := cooldownKey(reading.PlotID, reading.Type, anomaly)
	if d.cooldown.IsOnCooldown(key, now) {
		d.stats.AlertsSuppressed.Add(1)
		metrics.DetectorSuppressedTotal.Inc()
		return true
	}
	if d.opts.Cooldown > 0 {
		d.cooldown.SetCooldown(key, d.opts.Cooldown, now)
	}
	return false
}

// emit sends alerts to the channel without blocking.
func (d *Detector) emit(alerts []*models.Alert) {
	if d.closed.Load() {
		return
	}
	for _, alert := range alerts {
		metrics.DetectorAlertsTotal.WithLabelValues(string(alert.AnomalyType), string(alert.Severity)).Inc()
		select {
		case d.alerts <- alert:
		default:
			dropped := d.stats.AlertsDropped.Add(1)
			if dropped == 1 || dropped%100 == 0 {
				log.Printf("warning: alert channel full, dropped %d alerts total", dropped)
			}
		}
	}
}

// DetectorStatsSnapshot is a snapshot of detector statistics.
type DetectorStatsSnapshot struct {
	ReadingsEvaluated int64
	ThresholdBreaches int64
	RapidDrops        int64
	Malfunctions      int64
	AlertsSuppressed  int64
	AlertsDropped     int64
}

// Stats returns a snapshot of detector statistics.
func (d *Detector) Stats() DetectorStatsSnapshot {
	return DetectorStatsSnapshot{
		ReadingsEvaluated: d.stats.ReadingsEvaluated.Load(),
		ThresholdBreaches: d.stats.ThresholdBreaches.Load(),
		RapidDrops:        d.stats.RapidDrops.Load(),
		Malfunctions:      d.stats.Malfunctions.Load(),
		AlertsSuppressed:  d.stats.AlertsSuppressed.Load(),
		AlertsDropped:     d.stats.AlertsDropped.Load(),
	}
}

// Close closes the detector's alert channel. Safe to call concurrently
// with Evaluate.
func (d *Detector) Close() {
	if d.closed.Swap(true) {
		return
	}
	close(d.alerts)
}

// deviationFraction measures how far outside the range a value is,
// relative to the range width.
func deviationFraction(value float64, rng Range) float64 {
	width := rng.Width()
	if width <= 0 {
		return 0
	}
	switch {
	case value < rng.Min:
		return (rng.Min - value) / width
	case value > rng.Max:
		return (value - rng.Max) / width
	default:
		return 0
	}
}

// severityForDeviation maps a deviation fraction to a severity.
func severityForDeviation(deviation float64) models.Severity {
	switch {
	case deviation >= 0.4:
		return models.SeverityCritical
	case deviation >= 0.3:
		return models.SeverityHigh
	case deviation >= 0.2:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func windowKey(plotID string, sensorType models.SensorType) string {
	return plotID + "|" + string(sensorType)
}

func cooldownKey(plotID string, sensorType models.SensorType, anomaly models.AnomalyType) string {
	return plotID + "|" + string(sensorType) + "|" + string(anomaly)
}
