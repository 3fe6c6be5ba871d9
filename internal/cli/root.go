package cli

import (
	"log/slog"
	"os"

	"github.com/me/rspd/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagServer    string
	flagOwner     string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking RSPD_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("RSPD_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// defaultOwner names the client port commands are queued under.
func defaultOwner() string {
	if s := os.Getenv("RSPD_OWNER"); s != "" {
		return s
	}
	if s := os.Getenv("USER"); s != "" {
		return s
	}
	return "rspctl"
}

// NewRootCmd creates the root cobra command for the rspctl CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rspctl",
		Short: "rspctl schedules register access on station boards",
		Long:  "rspctl queues timed and periodic register reads and writes with an rspd server and inspects its rounds and cache.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "rspd server URL (or RSPD_SERVER env)")
	root.PersistentFlags().StringVar(&flagOwner, "owner", defaultOwner(), "Owner the commands are queued under (or RSPD_OWNER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newReadCmd(),
		newWriteCmd(),
		newSubscribeCmd(),
		newCancelCmd(),
		newUnsubscribeCmd(),
		newGetCmd(),
		newListCmd(),
		newRoundsCmd(),
		newCacheCmd(),
		newStatusCmd(),
	)

	return root
}
