// Package anomaly detects anomalous sensor readings with per-plot
// sliding windows and configurable operating thresholds.
package anomaly

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/agrisense/agrisense/internal/models"
)

// Range is the normal operating range for a sensor type. Readings
// outside it are anomalous even when physically possible.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Contains reports whether v is within the range, inclusive.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Width returns the size of the range.
func (r Range) Width() float64 {
	return r.Max - r.Min
}

// Thresholds maps sensor types to their normal operating ranges.
type Thresholds map[models.SensorType]Range

// DefaultThresholds returns the built-in operating ranges.
func DefaultThresholds() Thresholds {
	return Thresholds{
		models.SensorTemperature: {Min: 20, Max: 50},
		models.SensorHumidity:    {Min: 30, Max: 90},
		models.SensorMoisture:    {Min: 5, Max: 95},
	}
}

// thresholdsConfig is the YAML file shape.
type thresholdsConfig struct {
	Thresholds map[string]Range `yaml:"thresholds"`
}

// LoadThresholdsFromFile loads operating thresholds from a YAML file.
// Sensor types absent from the file keep their defaults.
func LoadThresholdsFromFile(path string) (Thresholds, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open thresholds file: %w", err)
	}
	defer f.Close()

	return LoadThresholds(f)
}

// LoadThresholds loads operating thresholds from a reader.
func LoadThresholds(r io.Reader) (Thresholds, error) {
	var config thresholdsConfig
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("parse thresholds YAML: %w", err)
	}

	thresholds := DefaultThresholds()
	for name, rng := range config.Thresholds {
		sensorType, err := models.ParseSensorType(name)
		if err != nil {
			return nil, fmt.Errorf("invalid threshold entry: %w", err)
		}
		if rng.Min >= rng.Max {
			return nil, fmt.Errorf("threshold for %s: min %.2f must be below max %.2f", name, rng.Min, rng.Max)
		}
		thresholds[sensorType] = rng
	}

	return thresholds, nil
}
