package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/me/onelane/pkg/model"
	"github.com/spf13/cobra"
	"golang.org/x/net/websocket"
)

func newWatchCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream live bridge events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := client.Dial()
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx := cmd.Context()
			go func() {
				<-ctx.Done()
				conn.Close()
			}()

			out := cmd.OutOrStdout()
			for seen := 0; count <= 0 || seen < count; seen++ {
				var ev model.Event
				if err := websocket.JSON.Receive(conn, &ev); err != nil {
					if errors.Is(err, io.EOF) || ctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("receive event: %w", err)
				}
				fmt.Fprintln(out, formatEvent(ev))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 0, "Exit after this many events (0 streams forever)")
	return cmd
}

// formatEvent renders one event as a single line.
func formatEvent(ev model.Event) string {
	prefix := string(ev.Type)
	if ev.Seq > 0 {
		prefix = fmt.Sprintf("#%d %s", ev.Seq, ev.Type)
	}
	switch {
	case ev.Vehicle != nil:
		v := ev.Vehicle
		return fmt.Sprintf("%s: %s (#%d) %s, %d/%d trips", prefix, v.Name, v.ID, v.State, v.TripsCompleted, v.TripsTotal)
	case ev.Snapshot != nil:
		occupant := "free"
		if occ, ok := ev.Snapshot.Occupant(); ok {
			occupant = occ.Name
		}
		return fmt.Sprintf("%s: bridge %s, %d waiting, %d vehicles", prefix, occupant, len(ev.Snapshot.Waiting), ev.Snapshot.TotalVehicles)
	case ev.Message != "":
		return fmt.Sprintf("%s: %s", prefix, ev.Message)
	default:
		return prefix
	}
}
