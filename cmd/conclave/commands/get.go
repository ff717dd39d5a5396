package commands

import (
	"strconv"

	"github.com/spf13/cobra"
)

func newGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "get <proposal-id>",
		Short:   "Show one proposal",
		Example: `  conclave get 3 --json`,
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

			p, err := a.engine.Get(id)
			if err != nil {
				return err
			}
			return printProposal(p)
		},
	}

	return cmd
}
