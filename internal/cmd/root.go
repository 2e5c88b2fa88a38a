package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sciencepoint",
	Short: "Command-line client for the sciencepoint coaching center",
	Long: `sciencepoint signs you in to the coaching-center backend and keeps your
session healthy: it restores the saved session on start, warns before the
credential expires, and signs you out when the server stops accepting it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx, which is cancelled on
// interrupt.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default is $HOME/.sciencepoint/config.yaml)")
	flags.String("api-url", "", "backend base URL (overrides api.base_url)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.StringP("format", "o", "text", "output format: text, json, yaml")
	flags.Bool("no-color", false, "disable colored output")
}
