// Package models contains the core domain types shared across the system.
package models

import (
	"fmt"
	"time"
)

// SensorType identifies the kind of measurement a reading carries.
type SensorType string

const (
	SensorTemperature SensorType = "temperature"
	SensorHumidity    SensorType = "humidity"
	SensorMoisture    SensorType = "moisture"
)

// AllSensorTypes lists every valid sensor type in canonical order.
// The dashboard partitions readings into buckets in this order.
var AllSensorTypes = []SensorType{SensorTemperature, SensorHumidity, SensorMoisture}

// ParseSensorType converts a string to SensorType.
func ParseSensorType(s string) (SensorType, error) {
	switch s {
	case "temperature":
		return SensorTemperature, nil
	case "humidity":
		return SensorHumidity, nil
	case "moisture":
		return SensorMoisture, nil
	default:
		return "", fmt.Errorf("invalid sensor type: %q", s)
	}
}

// Unit returns the measurement unit for the sensor type.
func (t SensorType) Unit() string {
	if t == SensorTemperature {
		return "°C"
	}
	return "%"
}

// SensorReading is a single measurement reported for a plot.
type SensorReading struct {
	ID        string     `json:"id"`
	PlotID    string     `json:"plot"`
	Type      SensorType `json:"sensor_type"`
	Value     float64    `json:"value"`
	Timestamp time.Time  `json:"timestamp"`
	Source    string     `json:"source,omitempty"`
}

// ValidateValue checks that a value is physically plausible for the type.
// Ranges follow the sensor datasheets: moisture and humidity are relative
// percentages, temperature is air temperature in Celsius.
func ValidateValue(t SensorType, value float64) error {
	switch t {
	case SensorMoisture:
		if value < 0 || value > 100 {
			return fmt.Errorf("moisture must be between 0 and 100%%, got %.2f", value)
		}
	case SensorTemperature:
		if value < -50 || value > 60 {
			return fmt.Errorf("temperature must be between -50 and 60°C, got %.2f", value)
		}
	case SensorHumidity:
		if value < 0 || value > 100 {
			return fmt.Errorf("humidity must be between 0 and 100%%, got %.2f", value)
		}
	default:
		return fmt.Errorf("invalid sensor type: %q", t)
	}
	return nil
}
