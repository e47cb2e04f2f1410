// Command selectd serves a memoized JSON-path selection over a polled
// document.
//
// The document comes from a file, an S3 object or a SQL query. selectd polls
// it, keeps the selection memoized while the document is unchanged and
// pushes changes to HTTP and WebSocket clients.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/selector/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.Print(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:   "selectd",
		Short: "Serve a memoized selection over a polled JSON document",
		Long: `selectd polls a JSON document from a file, an S3 object or a SQL
query and serves a gjson path selection over it.

The selection is recomputed only when the document changes, and clients
are notified only when the selection itself changes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file (default: selectd.yaml/.yml/.json in the working directory)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(
		serveCmd(&flags),
		watchCmd(&flags),
		getCmd(&flags),
		versionCmd(),
	)
	return rootCmd
}
