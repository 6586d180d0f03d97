package cli

import (
	"fmt"

	"github.com/me/onelane/pkg/model"
	"github.com/spf13/cobra"
)

func newRegisterCmd() *cobra.Command {
	var (
		name      string
		speed     float64
		wait      float64
		direction string
		priority  int
		trips     int
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a vehicle at the back of its priority class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := model.ParseDirection(direction)
			if err != nil {
				return err
			}
			spec := model.VehicleSpec{
				Name:         name,
				Speed:        speed,
				WaitTimeHint: wait,
				Direction:    dir,
			}
			if cmd.Flags().Changed("priority") {
				spec.Priority = &priority
			}
			if cmd.Flags().Changed("trips") {
				spec.Trips = &trips
			}

			var v model.Vehicle
			if _, err := client.PostInto(cmd.Context(), "/api/v1/vehicles", spec, &v); err != nil {
				return fmt.Errorf("register vehicle: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Vehicle %d registered\n", v.ID)
			fmt.Fprintf(out, "  Name:      %s\n", v.Name)
			fmt.Fprintf(out, "  Direction: %s\n", v.Direction.Label())
			fmt.Fprintf(out, "  Priority:  %d\n", v.Priority)
			fmt.Fprintf(out, "  Trips:     %d\n", v.TripsTotal)
			if v.CrossingSeconds > 0 {
				fmt.Fprintf(out, "  Crossing:  ~%.1fs\n", v.CrossingSeconds)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Vehicle name (default vehicle-<id>)")
	cmd.Flags().Float64Var(&speed, "speed", 0, "Speed in km/h")
	cmd.Flags().Float64Var(&wait, "wait", 0, "Wait time hint in seconds")
	cmd.Flags().StringVar(&direction, "direction", "N", "Direction of travel (N or S)")
	cmd.Flags().IntVar(&priority, "priority", model.DefaultPriority, "Priority class, lower is served first")
	cmd.Flags().IntVar(&trips, "trips", 1, "Number of crossings before the vehicle exits")

	return cmd
}
