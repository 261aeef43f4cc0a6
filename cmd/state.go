package cmd

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/pinsweep/internal/state"
)

// newStateCmd creates and configures the 'state' subcommand.
func newStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Shows resume state from the found log",
		Long: `Reads the found log and prints the PINs a new sweep would skip. The
found log is the only input that gates resume; potential hits and the
scratch file never suppress a probe.`,

		RunE: runStateCommand,
	}
	return cmd
}

func runStateCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd.Context())
	if err != nil {
		return err
	}

	resume, err := state.LoadResumeSet(cfg.State.FoundLog)
	if err != nil {
		return fmt.Errorf("load resume set: %w", err)
	}

	pins := make([]string, 0, len(resume))
	for pin := range resume {
		pins = append(pins, pin)
	}
	// Resume members are digit strings by construction.
	sort.Slice(pins, func(i, j int) bool {
		a, _ := strconv.Atoi(pins[i])
		b, _ := strconv.Atoi(pins[j])
		return a < b
	})

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "found log: %s\n", cfg.State.FoundLog)
	fmt.Fprintf(out, "confirmed pins: %d\n", len(pins))
	for i := 0; i < len(pins); i++ {
		fmt.Fprintln(out, pins[i])
	}
	return nil
}
