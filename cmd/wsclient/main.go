// Wsclient is a command-line WebSocket (RFC 6455) client.
//
// It opens interactive sessions, sends one-shot messages, discovers
// WebSocket services advertised over mDNS, and manages saved connection
// profiles. Frames can be captured to JSON Lines or SQLite for later
// inspection.
//
// Usage:
//
//	wsclient [command] [flags]
//
// See 'wsclient --help' for available commands.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/wsclient/internal/logging"
	"github.com/muurk/wsclient/internal/version"
)

// Global flags
var (
	logLevel        string
	pyroscopeServer string
)

// errReported fails a command whose error was already printed as a result box.
var errReported = errors.New("failed")

func main() {
	err := rootCmd.Execute()
	stopProfiling()
	logging.Sync()
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wsclient",
	Short: "WebSocket client",
	Long: `A command-line WebSocket (RFC 6455) client.

Connect to ws:// and wss:// servers interactively, send one-shot messages
from scripts, discover services on the local network, and keep connection
settings as named profiles.

Logging is silent unless --log-level or WSCLIENT_LOG_LEVEL is set; log
output always goes to stderr.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Initialize(logLevel); err != nil {
			return err
		}
		return startProfiling(pyroscopeServer)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); default from "+logging.LogLevelEnvVar)
	rootCmd.PersistentFlags().StringVar(&pyroscopeServer, "pyroscope-server", "", "Send continuous profiles to this Pyroscope server (e.g. http://localhost:4040)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "wsclient %s\n%s\n", version.Full(), version.Platform())
	},
}
