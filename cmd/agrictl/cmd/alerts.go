package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agrisense/agrisense/internal/models"
	"github.com/agrisense/agrisense/pkg/client"
)

var alertsFilter string

// alertsCmd represents the alerts command group
var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Alert management commands",
	Long: `Commands for reviewing and resolving anomaly alerts.

Examples:
  # List active alerts
  agrictl alerts list

  # List everything, including resolved alerts
  agrictl alerts list --filter all

  # Resolve an alert and show the remaining active ones
  agrictl alerts resolve 3f8a1c2e-...

  # Show AI recommendations for an alert
  agrictl alerts recommend 3f8a1c2e-...`,
}

// alertsListCmd lists alerts.
var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := parseAlertFilter(alertsFilter)
		if err != nil {
			return err
		}

		c, err := apiClient()
		if err != nil {
			return err
		}

		alerts, err := c.ListAlerts(cmd.Context(), filter)
		if err != nil {
			return err
		}

		printAlerts(alerts)
		return nil
	},
}

// alertsResolveCmd marks an alert resolved.
var alertsResolveCmd = &cobra.Command{
	Use:   "resolve <alert-id>",
	Short: "Mark an alert as resolved",
	Long: `Mark an alert as resolved and print the alerts still active
afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := apiClient()
		if err != nil {
			return err
		}

		active, err := c.ResolveAlert(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Alert %s resolved.\n\n", args[0])
		if len(active) == 0 {
			fmt.Println("No active alerts remaining.")
			return nil
		}
		fmt.Printf("Still active:\n")
		printAlerts(active)
		return nil
	},
}

// alertsRecommendCmd shows recommendations for an alert.
var alertsRecommendCmd = &cobra.Command{
	Use:   "recommend <alert-id>",
	Short: "Show AI recommendations for an alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := apiClient()
		if err != nil {
			return err
		}

		recs, err := c.Recommendations(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if GetOutput() == "json" {
			data, _ := json.MarshalIndent(recs, "", "  ")
			fmt.Println(string(data))
			return nil
		}

		if len(recs) == 0 {
			fmt.Println("No recommendations for this alert yet.")
			return nil
		}

		for i, rec := range recs {
			if i > 0 {
				fmt.Println()
			}
			fmt.Printf("Action:     %s\n", rec.ActionType)
			fmt.Printf("Urgency:    %s\n", rec.Urgency)
			fmt.Printf("Confidence: %.0f%%\n", rec.Confidence)
			fmt.Printf("Rationale:  %s\n", rec.Explanation)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsResolveCmd)
	alertsCmd.AddCommand(alertsRecommendCmd)

	alertsListCmd.Flags().StringVarP(&alertsFilter, "filter", "f", "active", "filter: active, resolved, or all")
}

func parseAlertFilter(s string) (client.AlertFilter, error) {
	switch s {
	case "active":
		return client.FilterActive, nil
	case "resolved":
		return client.FilterResolved, nil
	case "all":
		return client.FilterAll, nil
	default:
		return "", fmt.Errorf("invalid filter %q: must be active, resolved, or all", s)
	}
}

func printAlerts(alerts []*models.Alert) {
	if GetOutput() == "json" {
		data, _ := json.MarshalIndent(alerts, "", "  ")
		fmt.Println(string(data))
		return
	}

	if len(alerts) == 0 {
		fmt.Println("No alerts found.")
		return
	}

	fmt.Printf("\n%-36s  %-15s  %-10s  %-18s  %-8s  %-8s  %s\n",
		"ID", "PLOT", "SENSOR", "ANOMALY", "SEVERITY", "STATUS", "DETECTED")
	fmt.Println(strings.Repeat("-", 120))

	for _, a := range alerts {
		status := "active"
		if a.Resolved {
			status = "resolved"
		}
		fmt.Printf("%-36s  %-15s  %-10s  %-18s  %-8s  %-8s  %s\n",
			a.ID,
			a.PlotName,
			a.SensorType,
			a.AnomalyType,
			a.Severity,
			status,
			a.DetectedAt.Format(time.DateTime),
		)
	}
	fmt.Printf("\nTotal: %d alert(s)\n", len(alerts))
}
