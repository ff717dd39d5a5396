package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/conclavehq/conclave/pkg/governance"
)

func newPolicyCommand() *cobra.Command {
	var me bool

	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Show the active governance policy",
		Example: `  # Full policy
  conclave policy --json

  # Just the caller's participant record
  conclave policy --me`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if me {
				caller, err := a.callerPrincipal()
				if err != nil {
					return err
				}
				participant, err := a.engine.Participant(caller)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(participant)
				}
				printParticipant(participant)
				return nil
			}

			policy := a.engine.Policy()
			if jsonOutput {
				return printJSON(policy)
			}
			for _, participant := range policy.Participants {
				printParticipant(participant)
			}
			categories := make([]string, 0, len(policy.Thresholds))
			for category := range policy.Thresholds {
				categories = append(categories, string(category))
			}
			sort.Strings(categories)
			for _, category := range categories {
				cfg := policy.Thresholds[governance.ActionCategory(category)]
				fmt.Printf("threshold %-16s stop at %d votes, %d affirmative to approve\n",
					category, cfg.StopVoteCount, cfg.PositiveVoteCount)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&me, "me", false, "show only the caller's participant record")

	return cmd
}

func printParticipant(p governance.Participant) {
	fmt.Printf("%s (%s)\n", p.Name, p.ID)
	categories := make([]string, 0, len(p.Capabilities))
	for category := range p.Capabilities {
		categories = append(categories, string(category))
	}
	sort.Strings(categories)
	for _, category := range categories {
		caps := p.Capabilities[governance.ActionCategory(category)]
		fmt.Printf("  %-16s", category)
		for _, c := range caps {
			fmt.Printf(" %s", c)
		}
		fmt.Println()
	}
}
