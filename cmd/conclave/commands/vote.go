package commands

import (
	"strconv"

	"github.com/spf13/cobra"
)

func newVoteCommand() *cobra.Command {
	var reject bool

	cmd := &cobra.Command{
		Use:   "vote <proposal-id>",
		Short: "Vote on a proposal",
		Long: `Record a vote on a proposal in the voting state. Each participant votes
at most once; when the configured stop count is reached the proposal moves
to approved or declined.`,
		Example: `  # Vote in favor of proposal 3
  conclave vote 3

  # Vote against it
  conclave vote 3 --reject`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return err
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			caller, err := a.callerPrincipal()
			if err != nil {
				return err
			}
			updated, err := a.engine.Vote(ctx, caller, id, !reject)
			if err != nil {
				return err
			}
			return printProposal(updated)
		},
	}

	cmd.Flags().BoolVar(&reject, "reject", false, "vote against the proposal")

	return cmd
}
