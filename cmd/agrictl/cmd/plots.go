package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agrisense/agrisense/internal/models"
)

var plotCropVariety string

// plotsCmd represents the plots command group
var plotsCmd = &cobra.Command{
	Use:   "plots",
	Short: "Plot management commands",
	Long: `Commands for managing monitored field plots.

Examples:
  # List all plots
  agrictl plots list

  # Register a new plot
  agrictl plots create north-field --crop "winter wheat"`,
}

// plotsListCmd lists plots.
var plotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all plots",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := apiClient()
		if err != nil {
			return err
		}

		plots, err := c.ListPlots(cmd.Context())
		if err != nil {
			return err
		}

		printPlots(plots)
		return nil
	},
}

// plotsCreateCmd registers a new plot.
var plotsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Register a new plot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := apiClient()
		if err != nil {
			return err
		}

		plot, err := c.CreatePlot(cmd.Context(), args[0], plotCropVariety)
		if err != nil {
			return err
		}

		fmt.Printf("Plot created:\n")
		fmt.Printf("  ID:   %s\n", plot.ID)
		fmt.Printf("  Name: %s\n", plot.Name)
		if plot.CropVariety != "" {
			fmt.Printf("  Crop: %s\n", plot.CropVariety)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(plotsCmd)
	plotsCmd.AddCommand(plotsListCmd)
	plotsCmd.AddCommand(plotsCreateCmd)

	plotsCreateCmd.Flags().StringVar(&plotCropVariety, "crop", "", "crop variety grown on the plot")
}

func printPlots(plots []*models.Plot) {
	if GetOutput() == "json" {
		data, _ := json.MarshalIndent(plots, "", "  ")
		fmt.Println(string(data))
		return
	}

	if len(plots) == 0 {
		fmt.Println("No plots found.")
		return
	}

	fmt.Printf("\n%-36s  %-20s  %-20s  %s\n", "ID", "NAME", "CROP", "CREATED")
	fmt.Println(strings.Repeat("-", 100))

	for _, p := range plots {
		fmt.Printf("%-36s  %-20s  %-20s  %s\n",
			p.ID, p.Name, p.CropVariety, p.CreatedAt.Format(time.DateOnly))
	}
	fmt.Printf("\nTotal: %d plot(s)\n", len(plots))
}
