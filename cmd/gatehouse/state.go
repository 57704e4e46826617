package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/gatehouse/internal/audit"
	"github.com/fyrsmithlabs/gatehouse/internal/config"
	"github.com/fyrsmithlabs/gatehouse/internal/session"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect persisted session state",
}

var stateShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print a session's state document",
	Long: `Print the full persisted state document for a session as JSON.

Examples:
  gatehouse state show abc123
  GATEHOUSE_STATE_DIR=/tmp/state gatehouse state show abc123`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		st, err := store.Load(args[0])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var statePathCmd = &cobra.Command{
	Use:   "path <session-id>",
	Short: "Print the state file path for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), store.Path(args[0]))
		return nil
	},
}

var auditLimit int

var stateAuditCmd = &cobra.Command{
	Use:   "audit <session-id>",
	Short: "Print a session's audit trail, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		store, err := audit.Open(cfg.AuditDB)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		entries, err := store.BySession(ctx, args[0], auditLimit)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-20s %-14s %-8s %s\n",
				e.CreatedAt.UTC().Format(time.RFC3339), e.Gate, e.Event, e.Verdict, e.Message)
		}
		return nil
	},
}

func init() {
	stateAuditCmd.Flags().IntVar(&auditLimit, "limit", 50, "maximum entries to print")
}

// openStore builds the session store from configuration.
func openStore() (*session.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return session.NewStore(cfg.StateDir)
}
