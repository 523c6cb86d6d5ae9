// Package main is the entry point for the agrictl CLI tool.
package main

import (
	"os"

	"github.com/agrisense/agrisense/cmd/agrictl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
