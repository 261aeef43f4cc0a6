package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/pinsweep/internal/scan"
)

// newProbeCmd creates and configures the 'probe' subcommand.
func newProbeCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "probe <pin>",
		Short: "Probes a single PIN candidate",
		Long: `Submits one PIN to the configured endpoint and prints its classification
without touching the sweep journals. Useful for checking the target's
response shape before committing to a full sweep.`,

		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd.Context())
			if err != nil {
				return err
			}

			prober := scan.NewHTTPProber(scan.ProberConfig{
				URL:         cfg.Target.URL,
				PinField:    cfg.Target.PinField,
				ActionField: cfg.Target.ActionField,
				ActionValue: cfg.Target.ActionValue,
				UserAgent:   cfg.Target.UserAgent,
				Referer:     cfg.Target.Referer,
				Headers:     cfg.Target.Headers,
				Timeout:     cfg.RequestTimeout(),
			})
			res, err := prober.Probe(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("probe: %w", err)
			}

			classifier := scan.NewClassifier(cfg.Scan.SuccessIndicator, cfg.Scan.FailureIndicator)
			outcome := classifier.Classify(res.Body)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "status: %d\n", res.StatusCode)
			fmt.Fprintf(out, "outcome: %s\n", outcome)
			if raw {
				fmt.Fprintln(out, scan.NewExtractor().ExtractRaw(res.Body))
				return nil
			}
			if outcome == scan.OutcomeMatch {
				fmt.Fprintln(out, scan.NewExtractor().Extract(res.Body))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "print the raw answer block instead of the trimmed summary")

	return cmd
}
