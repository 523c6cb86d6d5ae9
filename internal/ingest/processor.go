// Package ingest accepts sensor readings from devices, over MQTT and
// HTTP, and moves them through validation, anomaly detection and the
// batching write path.
package ingest

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/agrisense/agrisense/internal/anomaly"
	"github.com/agrisense/agrisense/internal/metrics"
	"github.com/agrisense/agrisense/internal/models"
	"github.com/agrisense/agrisense/internal/storage"
)

// ErrRateLimited is returned when a device exceeds its ingest rate.
var ErrRateLimited = errors.New("device rate limit exceeded")

// ErrInvalidValue is returned for physically impossible values. The
// reading still reaches the detector so a malfunction alert can fire,
// but it is not stored.
var ErrInvalidValue = errors.New("invalid sensor value")

// ProcessorOptions configures the ingest processor.
type ProcessorOptions struct {
	// DeviceRate is the sustained readings-per-second budget per device.
	DeviceRate float64

	// DeviceBurst is the burst budget per device.
	DeviceBurst int
}

// DefaultProcessorOptions returns the default processor options.
func DefaultProcessorOptions() *ProcessorOptions {
	return &ProcessorOptions{
		DeviceRate:  5,
		DeviceBurst: 20,
	}
}

// Processor validates readings, applies per-device rate limits, feeds
// the anomaly detector and hands accepted readings to the buffer.
type Processor struct {
	buffer   *storage.ReadingBuffer
	detector *anomaly.Detector
	opts     *ProcessorOptions

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	accepted atomic.Int64
	rejected atomic.Int64
	limited  atomic.Int64
}

// NewProcessor creates an ingest processor.
func NewProcessor(buffer *storage.ReadingBuffer, detector *anomaly.Detector, opts *ProcessorOptions) *Processor {
	if opts == nil {
		opts = DefaultProcessorOptions()
	}
	return &Processor{
		buffer:   buffer,
		detector: detector,
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Process handles a single reading. Structural problems (unknown type,
// missing plot) are rejected outright. Physically impossible values are
// evaluated by the detector, then rejected with ErrInvalidValue.
func (p *Processor) Process(reading *models.SensorReading) error {
	if reading.PlotID == "" {
		p.reject()
		return fmt.Errorf("reading has no plot id")
	}
	if _, err := models.ParseSensorType(string(reading.Type)); err != nil {
		p.reject()
		return err
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now()
	}

	if !p.allow(deviceKey(reading)) {
		p.limited.Add(1)
		metrics.IngestRejectedTotal.WithLabelValues("rate_limited").Inc()
		return ErrRateLimited
	}

	p.detector.Evaluate(reading)

	if err := models.ValidateValue(reading.Type, reading.Value); err != nil {
		p.reject()
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	p.accepted.Add(1)
	return p.buffer.Add(storage.RecordFromReading(reading))
}

func (p *Processor) reject() {
	p.rejected.Add(1)
	metrics.IngestRejectedTotal.WithLabelValues("invalid").Inc()
}

// allow consults the per-device rate limiter.
func (p *Processor) allow(device string) bool {
	p.mu.Lock()
	limiter, ok := p.limiters[device]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(p.opts.DeviceRate), p.opts.DeviceBurst)
		p.limiters[device] = limiter
		metrics.IngestDevicesActive.Set(float64(len(p.limiters)))
	}
	p.mu.Unlock()

	return limiter.Allow()
}

// deviceKey identifies the rate limit bucket for a reading. Devices
// without a source share the plot bucket.
func deviceKey(reading *models.SensorReading) string {
	if reading.Source != "" {
		return reading.Source
	}
	return reading.PlotID
}

// ProcessorStats is a snapshot of processor counters.
type ProcessorStats struct {
	Accepted int64
	Rejected int64
	Limited  int64
}

// Stats returns a snapshot of processor counters.
func (p *Processor) Stats() ProcessorStats {
	return ProcessorStats{
		Accepted: p.accepted.Load(),
		Rejected: p.rejected.Load(),
		Limited:  p.limited.Load(),
	}
}
