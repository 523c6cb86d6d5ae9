package storage

import (
	"context"
	"time"

	"github.com/agrisense/agrisense/internal/models"
)

// ReadingStorage defines operations for sensor reading persistence.
// Kept separate from Storage because readings have a different access
// pattern (high-volume writes, time-range queries).
type ReadingStorage interface {
	// Open initializes the reading storage connection.
	Open() error
	// Close closes the reading storage connection.
	Close() error
	// Migrate creates or updates the reading storage schema.
	Migrate() error
	// Ping checks the connection health.
	Ping(ctx context.Context) error

	// Readings returns the reading repository.
	Readings() ReadingRepository
}

// ReadingRepository defines sensor reading operations.
type ReadingRepository interface {
	// InsertBatch inserts multiple readings in a single batch.
	InsertBatch(ctx context.Context, records []*ReadingRecord) error

	// Query retrieves readings matching the filter, ordered by
	// timestamp ascending unless the filter says otherwise.
	Query(ctx context.Context, filter *ReadingFilter) ([]*ReadingRecord, error)

	// Count returns the count of readings matching the filter.
	Count(ctx context.Context, filter *ReadingFilter) (int64, error)

	// Latest returns the most recent reading per sensor type for a plot.
	Latest(ctx context.Context, plotID string) ([]*ReadingRecord, error)

	// DeleteBefore removes readings older than the specified time.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ReadingRecord is a sensor reading as stored in the time-series backend.
type ReadingRecord struct {
	// ID is the unique identifier for the reading.
	ID string

	// PlotID identifies the plot the reading belongs to.
	PlotID string

	// Type is the sensor type (temperature, humidity, moisture).
	Type models.SensorType

	// Value is the measured value in the sensor's unit.
	Value float64

	// Timestamp is when the measurement was taken.
	Timestamp time.Time

	// Source identifies the device or simulator that sent the reading.
	Source string
}

// ReadingFilter defines query parameters for reading retrieval.
type ReadingFilter struct {
	// PlotID restricts results to a single plot.
	PlotID string

	// Types restricts results to the given sensor types.
	Types []models.SensorType

	// Time range.
	Start time.Time
	End   time.Time

	// Source restricts results to a single device.
	Source string

	// Limit caps the number of results (0 means the default limit).
	Limit int

	// Descending orders newest first instead of oldest first.
	Descending bool
}

// RecordFromReading converts an API-level reading into a storage record.
func RecordFromReading(r *models.SensorReading) *ReadingRecord {
	return &ReadingRecord{
		ID:        r.ID,
		PlotID:    r.PlotID,
		Type:      r.Type,
		Value:     r.Value,
		Timestamp: r.Timestamp,
		Source:    r.Source,
	}
}

// ReadingFromRecord converts a storage record back to the API model.
func ReadingFromRecord(rec *ReadingRecord) *models.SensorReading {
	return &models.SensorReading{
		ID:        rec.ID,
		PlotID:    rec.PlotID,
		Type:      rec.Type,
		Value:     rec.Value,
		Timestamp: rec.Timestamp,
		Source:    rec.Source,
	}
}
