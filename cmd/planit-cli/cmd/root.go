// Package cmd implements CLI commands for planit-cli.
package cmd

import (
	"fmt"
	"os"

	"github.com/Aaks-hatH/planit-sub000/cmd/planit-cli/output"
	"github.com/Aaks-hatH/planit-sub000/pkg/version"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	apiEndpoint string
	timeout     int
	jsonOutput  bool

	// Formatter for output
	formatter output.Formatter
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "planit-cli",
	Short: "CLI for inspecting a running PlanIt router",
	Long: `planit-cli talks to the admin API of a running planit-router instance.

It provides commands to:
  - View overall router status
  - List backend replicas with health and traffic counters
  - View recent backend health incidents

Use --api to specify the admin API endpoint (default: http://127.0.0.1:8081).`,
	Version: version.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		formatter = output.GetFormatter(jsonOutput)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiEndpoint, "api", getEnvOrDefault("PLANIT_API", "http://127.0.0.1:8081"), "router admin API endpoint")
	rootCmd.PersistentFlags().IntVar(&timeout, "timeout", 10, "API request timeout in seconds")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(backendsCmd)
	rootCmd.AddCommand(incidentsCmd)

	rootCmd.SetVersionTemplate(fmt.Sprintf("planit-cli version %s\n", version.Version))
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
