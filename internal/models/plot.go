package models

import "time"

// Plot is a monitored agricultural parcel. Sensor readings and alerts
// are scoped to a plot.
type Plot struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CropVariety string    `json:"crop_variety,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewPlot creates a new Plot with initialized timestamps.
func NewPlot(name, cropVariety string) *Plot {
	now := time.Now()
	return &Plot{
		Name:        name,
		CropVariety: cropVariety,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
