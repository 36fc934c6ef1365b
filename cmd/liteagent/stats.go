package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"liteagent/internal/journal"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show execution journal totals",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := journal.Open(cfg.journalPath())
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("journal schema: %w", err)
	}

	sum, err := store.GetSummary(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("sessions:   %d\n", sum.Sessions)
	fmt.Printf("executions: %d\n", sum.Executions)
	fmt.Printf("failures:   %d\n", sum.Failures)
	return nil
}
