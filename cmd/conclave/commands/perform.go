package commands

import (
	"strconv"

	"github.com/spf13/cobra"
)

func newPerformCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "perform <proposal-id>",
		Short: "Perform an approved proposal",
		Long: `Dispatch the action of an approved proposal. The outcome, success or
failure, is recorded exactly once; a failed remote action still moves the
proposal to its terminal performed state.`,
		Example: `  conclave perform 3`,
		Args:    cobra.ExactArgs(1),
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
			performed, err := a.engine.Perform(ctx, caller, id)
			if err != nil {
				return err
			}
			return printProposal(performed)
		},
	}

	return cmd
}
