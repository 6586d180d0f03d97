package cli

import (
	"fmt"
	"strconv"

	"github.com/me/onelane/pkg/model"
	"github.com/spf13/cobra"
)

// finishResult mirrors the finish-crossing reply.
type finishResult struct {
	Finished bool           `json:"finished"`
	Exited   bool           `json:"exited"`
	Vehicle  *model.Vehicle `json:"vehicle"`
}

func parseVehicleID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid vehicle id %q", arg)
	}
	return id, nil
}

func newRequestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "request <vehicle_id>",
		Short: "Ask for the bridge on behalf of a vehicle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVehicleID(args[0])
			if err != nil {
				return err
			}

			var resp model.CrossingResponse
			path := fmt.Sprintf("/api/v1/vehicles/%d/request-crossing", id)
			if _, err := client.PostInto(cmd.Context(), path, nil, &resp); err != nil {
				return fmt.Errorf("request crossing: %w", err)
			}

			out := cmd.OutOrStdout()
			if resp.Permitted {
				fmt.Fprintf(out, "Granted: %s\n", resp.Message)
				return nil
			}
			fmt.Fprintf(out, "Denied (%s): %s\n", resp.Reason, resp.Message)
			return nil
		},
	}
}

func newFinishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "finish <vehicle_id>",
		Short: "Leave the bridge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVehicleID(args[0])
			if err != nil {
				return err
			}

			var res finishResult
			path := fmt.Sprintf("/api/v1/vehicles/%d/finish-crossing", id)
			if _, err := client.PostInto(cmd.Context(), path, nil, &res); err != nil {
				return fmt.Errorf("finish crossing: %w", err)
			}

			out := cmd.OutOrStdout()
			switch {
			case !res.Finished:
				fmt.Fprintf(out, "Vehicle %d is not on the bridge; nothing to do\n", id)
			case res.Exited:
				fmt.Fprintf(out, "Vehicle %d finished its last trip and left\n", id)
			default:
				remaining := 0
				dir := ""
				if res.Vehicle != nil {
					remaining = res.Vehicle.TripsRemaining
					dir = res.Vehicle.Direction.Label()
				}
				fmt.Fprintf(out, "Vehicle %d back in the queue, now %s (%d trips left)\n", id, dir, remaining)
			}
			return nil
		},
	}
}
