package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeMetricsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Serve the Prometheus metrics endpoint",
		Long: `Run the Prometheus metrics HTTP listener until interrupted. Metrics must
be enabled in the telemetry section of the config.`,
		Example: `  conclave serve-metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if a.metrics == nil {
				return fmt.Errorf("metrics are disabled in the config")
			}

			log.Info().
				Str("address", a.cfg.Telemetry.Metrics.ListenAddress).
				Msg("Serving metrics")

			errCh := make(chan error, 1)
			go func() { errCh <- a.metrics.ListenAndServe() }()

			select {
			case <-ctx.Done():
				return nil
			case err := <-errCh:
				return err
			}
		},
	}

	return cmd
}
