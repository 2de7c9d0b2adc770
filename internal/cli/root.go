package cli

import (
	"github.com/spf13/cobra"
)

// Execute builds and runs the CLI.
func Execute() error {
	var (
		cfgFile  string
		logLevel string
		debug    bool
	)

	rootCmd := &cobra.Command{
		Use:   "logflux",
		Short: "Feed syslog messages to InfluxDB as time-series points",
		Long: `logflux listens on a local datagram socket for log messages, matches
each against an ordered set of regex rules, extracts fields and tags from
the matched text, and writes the resulting measurement points to InfluxDB
(and optionally stdout, a rotating file, or Elasticsearch).

Message format (JSON or legacy header lines) is auto-detected on the first
message unless configured explicitly. Concurrency is selectable: handle
messages sequentially, one goroutine per message, or on a bounded worker
pool.

Hot-reload: when a config file is specified, rule changes are applied
without a restart. Socket, dispatch, and sink changes require one.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./logflux.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "shorthand for --log-level debug")

	rootCmd.AddCommand(
		NewRunCmd(&cfgFile, &logLevel, &debug),
		NewValidateCmd(&cfgFile),
		NewVersionCmd(),
	)

	return rootCmd.Execute()
}
