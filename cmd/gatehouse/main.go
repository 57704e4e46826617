// Package main implements the gatehouse CLI: one subcommand per agent
// lifecycle hook, each reading a JSON event from stdin and writing a JSON
// verdict to stdout, plus inspection commands for session state.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath overrides the default config file location.
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gatehouse",
	Short: "Gate engine for AI coding-agent lifecycle hooks",
	Long: `gatehouse enforces named gates (hydration, compliance-review,
quality-check, ...) over an AI coding agent's session. Each hook subcommand
reads one JSON event from stdin and writes one JSON verdict to stdout.

The process exit code is always zero; blocking is communicated through the
verdict field, never through exit status.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/gatehouse/config.yaml)")

	rootCmd.AddCommand(hookCommands()...)
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(statePathCmd)
	stateCmd.AddCommand(stateAuditCmd)
}
