package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agrisense/agrisense/internal/models"
	"github.com/agrisense/agrisense/pkg/client"
)

var (
	dashboardPlot  string
	dashboardRange string
)

// dashboardCmd shows per-plot sensor summaries.
var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show the sensor dashboard for a plot",
	Long: `Fetch recent sensor readings for a plot and summarize them per
sensor type: latest value, min, max, and average over the window.

Examples:
  # Last 24 hours (default)
  agrictl dashboard --plot north-field

  # Last week
  agrictl dashboard --plot north-field --range 7d`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if dashboardPlot == "" {
			return fmt.Errorf("--plot is required")
		}

		c, err := apiClient()
		if err != nil {
			return err
		}

		readings, err := c.ListReadings(cmd.Context(), dashboardPlot, dashboardRange)
		if err != nil {
			return err
		}

		buckets := client.PartitionByType(readings)

		if GetOutput() == "json" {
			data, _ := json.MarshalIndent(buckets, "", "  ")
			fmt.Println(string(data))
			return nil
		}

		if buckets.Total() == 0 {
			fmt.Printf("No readings for plot %s in the last %s.\n", dashboardPlot, dashboardRange)
			return nil
		}

		fmt.Printf("\nPlot %s, last %s (%d readings)\n\n", dashboardPlot, dashboardRange, buckets.Total())
		printSeries("Temperature", buckets.Temperature)
		printSeries("Humidity", buckets.Humidity)
		printSeries("Moisture", buckets.Moisture)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)

	dashboardCmd.Flags().StringVarP(&dashboardPlot, "plot", "p", "", "plot ID (required)")
	dashboardCmd.Flags().StringVarP(&dashboardRange, "range", "r", "24h", "time window (e.g. 6h, 24h, 7d)")
}

// seriesStats summarizes one sensor series.
type seriesStats struct {
	Count  int
	Latest float64
	Min    float64
	Max    float64
	Avg    float64
	Unit   string
}

// summarize computes stats over a chronologically ordered series.
func summarize(readings []*models.SensorReading) seriesStats {
	if len(readings) == 0 {
		return seriesStats{}
	}

	s := seriesStats{
		Count:  len(readings),
		Latest: readings[len(readings)-1].Value,
		Min:    readings[0].Value,
		Max:    readings[0].Value,
		Unit:   readings[0].Type.Unit(),
	}

	var sum float64
	for _, r := range readings {
		sum += r.Value
		if r.Value < s.Min {
			s.Min = r.Value
		}
		if r.Value > s.Max {
			s.Max = r.Value
		}
	}
	s.Avg = sum / float64(len(readings))
	return s
}

// gauge renders the latest value as a bar within the observed range.
func gauge(stats seriesStats, width int) string {
	if width <= 0 || stats.Count == 0 {
		return ""
	}
	span := stats.Max - stats.Min
	filled := width
	if span > 0 {
		filled = int(float64(width) * (stats.Latest - stats.Min) / span)
	}
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

func printSeries(label string, readings []*models.SensorReading) {
	stats := summarize(readings)
	if stats.Count == 0 {
		fmt.Printf("%-12s  no readings\n", label)
		return
	}

	fmt.Printf("%-12s  %7.1f%-3s %s  min %.1f  max %.1f  avg %.1f  (%d readings)\n",
		label, stats.Latest, stats.Unit, gauge(stats, 20),
		stats.Min, stats.Max, stats.Avg, stats.Count)
}
