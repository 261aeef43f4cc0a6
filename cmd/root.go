// Package cmd defines and implements the CLI commands for the pinsweep executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/pinsweep/internal/config"
)

var cfgFile string

// cfgKeyType is the key for storing the loaded config in the context.
type cfgKeyType string

const cfgKey cfgKeyType = "config"

// loadConfig is the configuration factory. It's a variable so we can
// replace it with a stub in our tests.
var loadConfig = config.Load

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pinsweep",
		Short: "An exhaustive PIN sweep tool for authorized endpoint testing.",
		Long: `pinsweep drives an exhaustive PIN sweep against a single form endpoint
you are authorized to test. It probes one candidate at a time, journals
every confirmed and potential hit to disk, and resumes from its own
logs so an interrupted run never repeats confirmed work.`,

		// This hook runs BEFORE the subcommand's RunE and injects the
		// loaded configuration for subcommands to use.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), cfgKey, &cfg)
			cmd.SetContext(ctx)
			return nil
		},

		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (defaults and PINSWEEP_* env vars apply when unset)",
	)

	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newProbeCmd())
	cmd.AddCommand(newStateCmd())

	return cmd
}

// resolveConfig retrieves the loaded configuration from the command context.
func resolveConfig(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(cfgKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not initialized")
	}
	return cfg, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
