package main

import (
	"context"

	"github.com/spf13/cobra"

	"liteagent/internal/engine"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Remove leftover sandbox containers",
	Long: `Find containers carrying the liteagent.managed label and force-remove
them. Sessions clean up after themselves; gc covers crashes and kills that
left containers behind.`,
	Args: cobra.NoArgs,
	RunE: runGC,
}

func init() {
	rootCmd.AddCommand(gcCmd)
}

func runGC(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	_, log, kind, err := setup(ctx)
	if err != nil {
		return err
	}

	drv, err := engine.New(ctx, kind)
	if err != nil {
		return err
	}
	removed, err := drv.RemoveOrphans(ctx)
	if err != nil {
		return err
	}
	log.Info("orphan sweep done", "engine", kind, "removed", removed)
	return nil
}
