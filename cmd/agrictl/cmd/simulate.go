package cmd

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/agrisense/agrisense/internal/models"
)

var (
	simulatePlot     string
	simulateCount    int
	simulateInterval time.Duration
)

// simulateCmd submits synthetic readings, useful for demos and for
// exercising a freshly deployed server.
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Submit synthetic sensor readings",
	Long: `Generate plausible sensor readings for a plot and submit them
through the API, one batch of temperature, humidity, and moisture
per interval.

Example:
  agrictl simulate --plot north-field --count 10 --interval 2s`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulatePlot == "" {
			return fmt.Errorf("--plot is required")
		}

		c, err := apiClient()
		if err != nil {
			return err
		}

		baselines := map[models.SensorType]float64{
			models.SensorTemperature: 22,
			models.SensorHumidity:    55,
			models.SensorMoisture:    40,
		}

		submitted := 0
		for i := 0; i < simulateCount; i++ {
			if i > 0 {
				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case <-time.After(simulateInterval):
				}
			}

			for sensorType, base := range baselines {
				reading := &models.SensorReading{
					PlotID:    simulatePlot,
					Type:      sensorType,
					Value:     base + rand.Float64()*4 - 2,
					Timestamp: time.Now().UTC(),
					Source:    "agrictl-simulate",
				}
				if err := c.SubmitReading(cmd.Context(), reading); err != nil {
					return fmt.Errorf("submit %s reading: %w", sensorType, err)
				}
				submitted++
				PrintVerbose("submitted %s=%.1f for plot %s", sensorType, reading.Value, simulatePlot)
			}
		}

		fmt.Printf("Submitted %d readings for plot %s.\n", submitted, simulatePlot)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVarP(&simulatePlot, "plot", "p", "", "plot ID (required)")
	simulateCmd.Flags().IntVarP(&simulateCount, "count", "n", 5, "number of batches to submit")
	simulateCmd.Flags().DurationVarP(&simulateInterval, "interval", "i", time.Second, "delay between batches")
}
