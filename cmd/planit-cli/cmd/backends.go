package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// BackendStatus represents one backend from the API.
type BackendStatus struct {
	Index        int        `json:"index"`
	Address      string     `json:"address"`
	Alive        bool       `json:"alive"`
	LatencyMs    *int64     `json:"latencyMs"`
	LastProbeAt  *time.Time `json:"lastProbeAt"`
	RequestCount int64      `json:"requestCount"`
}

// BackendsResponse is the API response for /api/v1/backends.
type BackendsResponse struct {
	Backends []BackendStatus `json:"backends"`
}

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List backend replicas with health status",
	Long:  `Display the ordered backend list with liveness, probe latency, and request counters.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewAPIClient()

		var response BackendsResponse
		if err := client.Get("/api/v1/backends", &response); err != nil {
			return fmt.Errorf("failed to get backends: %w", err)
		}

		if jsonOutput {
			return formatter.Print(response.Backends)
		}

		headers := []string{"INDEX", "ADDRESS", "STATUS", "LATENCY", "LAST PROBE", "REQUESTS"}
		rows := make([][]string, 0, len(response.Backends))

		for _, b := range response.Backends {
			status := "down"
			if b.Alive {
				status = "alive"
			}

			latency := "-"
			if b.LatencyMs != nil {
				latency = fmt.Sprintf("%dms", *b.LatencyMs)
			}

			lastProbe := "never"
			if b.LastProbeAt != nil {
				lastProbe = b.LastProbeAt.Local().Format(time.RFC3339)
			}

			rows = append(rows, []string{
				fmt.Sprintf("%d", b.Index),
				b.Address,
				status,
				latency,
				lastProbe,
				fmt.Sprintf("%d", b.RequestCount),
			})
		}

		formatter.PrintTable(headers, rows)
		return nil
	},
}
