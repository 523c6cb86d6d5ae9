// Package cmd contains the CLI commands for agrictl.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agrisense/agrisense/pkg/client"
)

var (
	// Used for flags
	verbose   bool
	output    string
	serverURL string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "agrictl",
	Short: "AgriSense - Farm Monitoring CLI",
	Long: `agrictl is the command line client for the AgriSense farm
monitoring platform.

It talks to an AgriSense server over its REST API and covers the
day-to-day operator workflow:

  - Reviewing and resolving anomaly alerts
  - Viewing AI recommendations for an alert
  - Inspecting sensor readings per plot
  - Managing plots and submitting test readings

Examples:
  # Log in to a server
  agrictl login --server https://farm.example.com --username admin

  # List active alerts
  agrictl alerts list

  # Show the sensor dashboard for a plot
  agrictl dashboard --plot north-field --range 24h`,
	// Run when no subcommand is specified
	Run: func(cmd *cobra.Command, args []string) {
		// Show help by default
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format (table, json, plain)")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "server URL (defaults to the logged-in server)")
}

// GetOutput returns the output format.
func GetOutput() string {
	return output
}

// PrintError prints an error message and exits if fatal is true.
func PrintError(msg string, fatal bool) {
	fmt.Fprintln(os.Stderr, "Error:", msg)
	if fatal {
		os.Exit(1)
	}
}

// PrintVerbose prints a message only if verbose mode is enabled.
func PrintVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Printf(format+"\n", args...)
	}
}

// apiClient builds a client for the configured server. The server URL
// comes from the --server flag, the AGRISENSE_SERVER environment
// variable, or the server recorded at login, in that order.
func apiClient() (*client.Client, error) {
	store, err := client.DefaultCredentialStore()
	if err != nil {
		return nil, fmt.Errorf("locate credentials: %w", err)
	}

	base := serverURL
	if base == "" {
		base = os.Getenv("AGRISENSE_SERVER")
	}
	if base == "" {
		if creds, err := store.Load(); err == nil && creds != nil {
			base = creds.ServerURL
		}
	}
	if base == "" {
		return nil, fmt.Errorf("no server configured, pass --server or run 'agrictl login'")
	}

	return client.New(base, client.WithCredentialStore(store))
}
