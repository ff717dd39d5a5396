package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	asCaller   string
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "conclave",
		Short: "Conclave - collective authorization engine",
		Long: `Conclave guards privileged operations behind proposals that a quorum of
participants must approve before they execute.

Features:
  - Proposal lifecycle with exactly-once terminal transitions
  - Capability-based permission model per action category
  - Candid textual and binary argument codec
  - Raw-bytes gRPC dispatch to remote processes
  - SQLite-backed state with cross-restart id continuity`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "conclave.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&asCaller, "as", "", "caller principal (overrides default_caller)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newProposeCommand())
	rootCmd.AddCommand(newVoteCommand())
	rootCmd.AddCommand(newPerformCommand())
	rootCmd.AddCommand(newGetCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newPolicyCommand())
	rootCmd.AddCommand(newEncodeCommand())
	rootCmd.AddCommand(newDecodeCommand())
	rootCmd.AddCommand(newBackupCommand())
	rootCmd.AddCommand(newRestoreCommand())
	rootCmd.AddCommand(newServeMetricsCommand())

	return rootCmd
}
