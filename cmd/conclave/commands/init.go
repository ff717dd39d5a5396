package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/conclavehq/conclave/pkg/candid"
	"github.com/conclavehq/conclave/pkg/config"
	"github.com/conclavehq/conclave/pkg/governance"
)

func newInitCommand() *cobra.Command {
	var (
		dataDir   string
		founder   string
		name      string
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a conclave workspace",
		Long: `Write a starter configuration and an initial governance policy.

The founder principal receives every capability in every category and a
1-of-1 voting threshold per category, so the first real policy update can
be proposed, approved and performed by the founder alone.`,
		Example: `  # Initialize with the anonymous principal as founder
  conclave init --founder 2vxsx-fae --name founder

  # Initialize into a custom data directory
  conclave init --data-dir /var/lib/conclave --founder 2vxsx-fae --name ops`,
		RunE: func(cmd *cobra.Command, args []string) error {
			founderID, err := candid.PrincipalFromText(founder)
			if err != nil {
				return fmt.Errorf("invalid founder principal: %w", err)
			}

			cfgPath := configPath
			if cfgPath == "" {
				cfgPath = filepath.Join(dataDir, "conclave.yaml")
			}
			if !overwrite {
				if _, err := os.Stat(cfgPath); err == nil {
					return fmt.Errorf("%s already exists, pass --overwrite to replace it", cfgPath)
				}
			}

			cfg := config.Default(dataDir)
			cfg.DefaultCaller = founderID.String()

			policy := founderPolicy(founderID, name)
			if err := config.WritePolicy(cfg.PolicyPath, policy); err != nil {
				return err
			}
			if err := cfg.Write(cfgPath); err != nil {
				return err
			}

			log.Info().
				Str("config", cfgPath).
				Str("policy", cfg.PolicyPath).
				Str("founder", founderID.String()).
				Msg("Workspace initialized")

			fmt.Printf("Wrote %s and %s\n", cfgPath, cfg.PolicyPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", ".", "workspace data directory")
	cmd.Flags().StringVar(&founder, "founder", "", "founder principal (required)")
	cmd.Flags().StringVar(&name, "name", "founder", "founder display name")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace existing files")
	_ = cmd.MarkFlagRequired("founder")

	return cmd
}

// founderPolicy grants the founder every capability with 1-of-1 thresholds.
func founderPolicy(id candid.Principal, name string) governance.Policy {
	capabilities := map[governance.ActionCategory][]governance.Capability{}
	thresholds := map[governance.ActionCategory]governance.VotingConfig{}
	for _, category := range governance.Categories() {
		capabilities[category] = []governance.Capability{
			governance.CapabilityAdd,
			governance.CapabilityVote,
			governance.CapabilityPerform,
		}
		thresholds[category] = governance.VotingConfig{StopVoteCount: 1, PositiveVoteCount: 1}
	}
	return governance.Policy{
		Participants: []governance.Participant{{ID: id, Name: name, Capabilities: capabilities}},
		Thresholds:   thresholds,
	}
}
