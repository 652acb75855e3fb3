package cmd

import (
	"fmt"
	"time"

	"github.com/Aaks-hatH/planit-sub000/cmd/planit-cli/output"
	"github.com/spf13/cobra"
)

// StatusResponse is the API response for /api/v1/status.
type StatusResponse struct {
	Status   string  `json:"status"`
	Version  string  `json:"version"`
	Uptime   float64 `json:"uptime"`
	Backends int     `json:"backends"`
	Alive    int     `json:"alive"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show overall router status",
	Long:  `Display the overall status of the router: version, uptime, and backend health counts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewAPIClient()

		var status StatusResponse
		if err := client.Get("/api/v1/status", &status); err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}

		if jsonOutput {
			return formatter.Print(status)
		}

		uptime := time.Duration(status.Uptime * float64(time.Second)).Round(time.Second)
		formatter.PrintKeyValue([]output.KVPair{
			{Key: "Status", Value: status.Status},
			{Key: "Version", Value: status.Version},
			{Key: "Uptime", Value: uptime.String()},
			{Key: "Backends", Value: fmt.Sprintf("%d", status.Backends)},
			{Key: "Alive", Value: fmt.Sprintf("%d", status.Alive)},
		})
		return nil
	},
}
