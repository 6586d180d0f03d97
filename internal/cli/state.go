package cli

import (
	"fmt"
	"io"

	"github.com/me/onelane/pkg/model"
	"github.com/spf13/cobra"
)

func newStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the bridge occupant and the waiting queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap model.Snapshot
			if _, err := client.GetInto(cmd.Context(), "/api/v1/state", &snap); err != nil {
				return fmt.Errorf("get state: %w", err)
			}
			printSnapshot(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Drop every vehicle and free the bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap model.Snapshot
			if _, err := client.PostInto(cmd.Context(), "/api/v1/reset", nil, &snap); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "System reset.")
			return nil
		},
	}
}

func printSnapshot(out io.Writer, snap model.Snapshot) {
	if occ, ok := snap.Occupant(); ok {
		fmt.Fprintf(out, "Bridge:  %s (#%d, %s)\n", occ.Name, occ.ID, occ.Direction.Label())
	} else {
		fmt.Fprintln(out, "Bridge:  free")
	}
	fmt.Fprintf(out, "Vehicles: %d\n", snap.TotalVehicles)

	if len(snap.Waiting) == 0 {
		fmt.Fprintln(out, "Queue:   empty")
		return
	}
	fmt.Fprintln(out, "Queue:")
	fmt.Fprintf(out, "  %-4s  %-6s  %-20s  %-9s  %s\n", "POS", "ID", "NAME", "PRIORITY", "TRIPS LEFT")
	for i, v := range snap.Waiting {
		fmt.Fprintf(out, "  %-4d  %-6d  %-20s  %-9d  %d\n", i+1, v.ID, v.Name, v.Priority, v.TripsRemaining)
	}
}
