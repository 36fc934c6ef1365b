package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"liteagent/internal/engine"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check which container engines are usable",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// probeEngine is swapped out by tests.
var probeEngine = engine.Probe

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	usable := 0
	for _, kind := range []engine.Kind{engine.Podman, engine.Docker} {
		info, err := probeEngine(ctx, kind)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%-8s unavailable (%v)\n", kind, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-8s ok: %s\n", kind, info.Version)
		usable++
	}

	if usable == 0 {
		return errors.New("no usable container engine found; install docker or podman")
	}
	return nil
}
