package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conclavehq/conclave/pkg/proposal"
)

func newListCommand() *cobra.Command {
	var (
		offset    uint64
		limit     uint64
		ascending bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List proposals",
		Long: `List proposals newest-first by default. The reported total is the last
issued proposal id.`,
		Example: `  # Latest ten proposals
  conclave list

  # Second page of five, oldest first
  conclave list --offset 5 --limit 5 --ascending`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			page, total := a.engine.List(offset, limit, ascending)
			if jsonOutput {
				return printJSON(struct {
					Proposals  []proposal.Proposal `json:"proposals"`
					TotalCount uint64              `json:"total_count"`
				}{Proposals: page, TotalCount: total})
			}

			for _, p := range page {
				category, _ := p.Payload.Category()
				fmt.Printf("#%-5d %-10s %-14s %d votes  %s\n",
					p.ID, p.State, category, len(p.Votes), p.Description)
			}
			fmt.Printf("%d of %d proposals\n", len(page), total)
			return nil
		},
	}

	cmd.Flags().Uint64Var(&offset, "offset", 0, "number of proposals to skip")
	cmd.Flags().Uint64Var(&limit, "limit", 10, "maximum proposals to return")
	cmd.Flags().BoolVar(&ascending, "ascending", false, "oldest first")

	return cmd
}
