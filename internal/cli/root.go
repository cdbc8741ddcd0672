// Package cli wires the commands the binary exposes: serve runs the bot,
// migrate applies the schema and exits.
package cli

import (
	"github.com/spf13/cobra"
)

var configPath string

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quizbot",
		Short: "Chat-driven exam service",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config (also CONFIG_PATH)")
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	return cmd
}
