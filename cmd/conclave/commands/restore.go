package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/conclavehq/conclave/pkg/config"
	"github.com/conclavehq/conclave/pkg/proposal"
	"github.com/conclavehq/conclave/pkg/stores"
)

func newRestoreCommand() *cobra.Command {
	var (
		inFile string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore application state from a backup",
		Long: `Replace the database contents with a backup written by the backup
command. An existing non-empty database is only overwritten with --force.`,
		Example: `  conclave restore --in conclave-backup.json --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			data, err := os.ReadFile(inFile)
			if err != nil {
				return fmt.Errorf("failed to read backup: %w", err)
			}
			var doc backupDocument
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("failed to parse backup: %w", err)
			}

			// Validate before touching the database.
			if err := doc.Policy.Validate(); err != nil {
				return fmt.Errorf("backup holds an invalid policy: %w", err)
			}
			store := proposal.NewStore()
			if err := store.Restore(doc.Snapshot); err != nil {
				return fmt.Errorf("backup holds an invalid snapshot: %w", err)
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			sqlite, err := stores.NewSQLiteStore(stores.Config{Path: cfg.DatabasePath})
			if err != nil {
				return err
			}
			if err := sqlite.Init(ctx); err != nil {
				return err
			}
			defer sqlite.Close()
			if err := sqlite.Migrate(ctx); err != nil {
				return err
			}

			if _, _, ok, err := sqlite.Load(ctx); err != nil {
				return err
			} else if ok && !force {
				return fmt.Errorf("%s already holds state, pass --force to overwrite it", cfg.DatabasePath)
			}

			if err := sqlite.Save(ctx, doc.Snapshot, doc.Policy); err != nil {
				return fmt.Errorf("failed to write restored state: %w", err)
			}

			log.Info().
				Str("in", inFile).
				Int("proposals", len(doc.Snapshot.Proposals)).
				Uint64("last_id", doc.Snapshot.LastID).
				Msg("State restored")
			fmt.Printf("Restored %d proposals (last id %d)\n",
				len(doc.Snapshot.Proposals), doc.Snapshot.LastID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inFile, "in", "i", "conclave-backup.json", "backup file to restore")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing state")

	return cmd
}
