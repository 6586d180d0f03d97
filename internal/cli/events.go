package cli

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/me/onelane/pkg/model"
	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	var (
		limit     int
		eventType string
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List journaled events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("limit", strconv.Itoa(limit))
			if eventType != "" {
				q.Set("type", eventType)
			}

			var entries []model.JournalEntry
			resp, err := client.GetInto(cmd.Context(), "/api/v1/events?"+q.Encode(), &entries)
			if err != nil {
				return fmt.Errorf("list events: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No events found.")
				return nil
			}

			fmt.Fprintf(out, "%-6s  %-26s  %-8s  %s\n", "SEQ", "TYPE", "VEHICLE", "WHEN")
			fmt.Fprintf(out, "%-6s  %-26s  %-8s  %s\n", "---", "----", "-------", "----")
			for _, e := range entries {
				vehicle := "-"
				if e.VehicleID != 0 {
					vehicle = strconv.FormatInt(e.VehicleID, 10)
				}
				fmt.Fprintf(out, "%-6d  %-26s  %-8s  %s\n", e.Seq, e.Type, vehicle, humanize.Time(e.CreatedAt))
			}

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Fprintf(out, "\n(%d of %s shown)\n", len(entries), humanize.Comma(int64(resp.Pagination.Total)))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of events (1-100)")
	cmd.Flags().StringVar(&eventType, "type", "", "Only show events of this type (e.g. vehicle_crossing)")
	return cmd
}
