package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/pinsweep/internal/app"
	"github.com/JakeFAU/pinsweep/internal/config"
)

// sweepApp is the slice of the application the scan command drives.
type sweepApp interface {
	Run(ctx context.Context) error
}

// buildApp is the application factory. It's a variable so we can
// replace it with a stub in our tests.
var buildApp = func(ctx context.Context, cfg *config.Config) (sweepApp, error) {
	return app.Build(ctx, cfg)
}

// newScanCmd creates and configures the 'scan' subcommand.
func newScanCmd() *cobra.Command {
	var (
		targetURL string
		startPin  int
		endPin    int
		delay     time.Duration
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Starts the PIN sweep",
		Long: `Runs the exhaustive sweep across the configured PIN range. Confirmed
finds recorded by earlier runs are skipped, so an interrupted sweep can
be restarted and picks up where it left off.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd.Context())
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("url") {
				cfg.Target.URL = targetURL
			}
			if cmd.Flags().Changed("start-pin") {
				cfg.Scan.StartPin = startPin
			}
			if cmd.Flags().Changed("end-pin") {
				cfg.Scan.EndPin = endPin
			}
			if cmd.Flags().Changed("delay") {
				cfg.Scan.DelayMs = int(delay.Milliseconds())
			}
			if cmd.Flags().Changed("timeout") {
				cfg.HTTP.TimeoutSeconds = int(timeout.Seconds())
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("validate config: %w", err)
			}

			application, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("build application: %w", err)
			}

			if err := application.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("run sweep: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&targetURL, "url", "", "target endpoint URL (overrides config)")
	cmd.Flags().IntVar(&startPin, "start-pin", 0, "first PIN candidate (overrides config)")
	cmd.Flags().IntVar(&endPin, "end-pin", 0, "last PIN candidate, inclusive (overrides config)")
	cmd.Flags().DurationVar(&delay, "delay", 0, "pause between probes (overrides config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-request HTTP timeout (overrides config)")

	return cmd
}
