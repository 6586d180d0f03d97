package cli

import (
	"log/slog"
	"os"

	"github.com/me/onelane/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking ONELANE_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("ONELANE_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the onelane CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "onelane",
		Short: "onelane: single-lane bridge scheduler client",
		Long:  "onelane registers vehicles, requests and finishes bridge crossings, and watches the live event stream.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.FromStrings("onelane", flagLogLevel, flagLogFormat)
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "onelane server URL (or ONELANE_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRegisterCmd(),
		newRequestCmd(),
		newFinishCmd(),
		newResetCmd(),
		newStateCmd(),
		newEventsCmd(),
		newWatchCmd(),
		newSimulateCmd(),
	)

	return root
}
