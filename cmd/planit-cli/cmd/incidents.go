package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// Incident represents one health transition from the API.
type Incident struct {
	Index   int       `json:"index"`
	Address string    `json:"address"`
	Alive   bool      `json:"alive"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// IncidentsResponse is the API response for /api/v1/incidents.
type IncidentsResponse struct {
	Incidents []Incident `json:"incidents"`
}

var incidentsLimit int

var incidentsCmd = &cobra.Command{
	Use:   "incidents",
	Short: "Show recent backend health incidents",
	Long:  `Display recent backend health transitions recorded in the incident journal, newest first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewAPIClient()

		var response IncidentsResponse
		path := fmt.Sprintf("/api/v1/incidents?limit=%d", incidentsLimit)
		if err := client.Get(path, &response); err != nil {
			return fmt.Errorf("failed to get incidents: %w", err)
		}

		if jsonOutput {
			return formatter.Print(response.Incidents)
		}

		headers := []string{"AT", "INDEX", "ADDRESS", "TRANSITION", "ERROR"}
		rows := make([][]string, 0, len(response.Incidents))

		for _, inc := range response.Incidents {
			transition := "went down"
			if inc.Alive {
				transition = "recovered"
			}
			errText := inc.Error
			if errText == "" {
				errText = "-"
			}

			rows = append(rows, []string{
				inc.At.Local().Format(time.RFC3339),
				fmt.Sprintf("%d", inc.Index),
				inc.Address,
				transition,
				errText,
			})
		}

		formatter.PrintTable(headers, rows)
		return nil
	},
}

func init() {
	incidentsCmd.Flags().IntVar(&incidentsLimit, "limit", 50, "maximum number of incidents to show")
}
