package client

import (
	"context"
	"net/url"

	"github.com/agrisense/agrisense/internal/models"
)

// ListReadings returns readings for a plot over a window like "24h" or
// "7d", oldest first.
func (c *Client) ListReadings(ctx context.Context, plotID, window string) ([]*models.SensorReading, error) {
	q := url.Values{}
	q.Set("plot", plotID)
	if window != "" {
		q.Set("range", window)
	}

	var readings []*models.SensorReading
	if err := c.Get(ctx, "/api/sensor-readings/?"+q.Encode(), &readings); err != nil {
		return nil, err
	}
	return readings, nil
}

// SubmitReading sends a single reading to the ingest endpoint.
func (c *Client) SubmitReading(ctx context.Context, reading *models.SensorReading) error {
	return c.Post(ctx, "/api/sensor-readings/", reading, nil)
}

// ReadingBuckets holds readings partitioned by sensor type, the shape
// the dashboard charts consume.
type ReadingBuckets struct {
	Temperature []*models.SensorReading
	Humidity    []*models.SensorReading
	Moisture    []*models.SensorReading
}

// Total returns the number of readings across all buckets.
func (b *ReadingBuckets) Total() int {
	return len(b.Temperature) + len(b.Humidity) + len(b.Moisture)
}

// PartitionByType splits readings into per-sensor-type buckets with a
// single linear scan, preserving input order within each bucket.
func PartitionByType(readings []*models.SensorReading) *ReadingBuckets {
	buckets := &ReadingBuckets{}
	for _, r := range readings {
		switch r.Type {
		case models.SensorTemperature:
			buckets.Temperature = append(buckets.Temperature, r)
		case models.SensorHumidity:
			buckets.Humidity = append(buckets.Humidity, r)
		case models.SensorMoisture:
			buckets.Moisture = append(buckets.Moisture, r)
		}
	}
	return buckets
}
