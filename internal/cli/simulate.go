package cli

import (
	"fmt"
	"time"

	"github.com/me/onelane/internal/driver"
	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	var (
		vehicles  int
		timeScale float64
		jitter    time.Duration
		seed      uint64
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Register random vehicles and drive them until every trip is done",
		Long: "simulate registers random vehicles and, for each one, retries crossing requests " +
			"after its wait hint, holds the bridge for its crossing time and finishes, until it exits.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if vehicles < 1 {
				return fmt.Errorf("--vehicles must be at least 1")
			}
			d := driver.New(driver.NewClient(flagServer), driver.Config{
				TimeScale:   timeScale,
				RetryJitter: jitter,
				Seed:        seed,
			}, logger)

			start := time.Now()
			summary, err := d.Run(cmd.Context(), d.RandomSpecs(vehicles))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Simulation finished in %s\n", time.Since(start).Round(time.Millisecond))
			fmt.Fprintf(out, "  Registered: %d\n", summary.Registered)
			fmt.Fprintf(out, "  Crossings:  %d\n", summary.Crossings)
			fmt.Fprintf(out, "  Denials:    %d\n", summary.Denials)
			fmt.Fprintf(out, "  Exited:     %d\n", summary.Exited)
			if err != nil {
				return fmt.Errorf("simulate: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&vehicles, "vehicles", 5, "Number of random vehicles")
	cmd.Flags().Float64Var(&timeScale, "time-scale", 1, "Multiplier applied to waits and crossing times")
	cmd.Flags().DurationVar(&jitter, "jitter", 5*time.Second, "Maximum random delay added to each retry")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed (0 uses the clock)")
	return cmd
}
