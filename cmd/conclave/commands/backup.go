package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/conclavehq/conclave/pkg/governance"
	"github.com/conclavehq/conclave/pkg/proposal"
)

// backupDocument is the portable state export written by backup and read by
// restore.
type backupDocument struct {
	Snapshot proposal.Snapshot `json:"snapshot"`
	Policy   governance.Policy `json:"policy"`
}

func newBackupCommand() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export the full application state",
		Long: `Write the proposal table, the id sequence and the active policy to a
portable JSON document. The export can be restored on the same or a
different machine.`,
		Example: `  conclave backup --out conclave-backup.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			doc := backupDocument{
				Snapshot: a.store.Snapshot(),
				Policy:   a.registry.Policy(),
			}
			data, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to serialize backup: %w", err)
			}
			if err := os.WriteFile(outFile, data, 0o600); err != nil {
				return fmt.Errorf("failed to write backup: %w", err)
			}

			log.Info().
				Str("out", outFile).
				Int("proposals", len(doc.Snapshot.Proposals)).
				Uint64("last_id", doc.Snapshot.LastID).
				Msg("Backup written")
			fmt.Printf("Wrote %s (%d proposals)\n", outFile, len(doc.Snapshot.Proposals))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "conclave-backup.json", "backup output file")

	return cmd
}
