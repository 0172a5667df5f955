package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"assetstore/internal/cleanup"
)

func init() {
	var batchSize, maxAttempts int

	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Process one batch of the pending file deletion queue",
		Long: `Deletes queued objects from storage, oldest first. Entries that keep failing
are dropped once they reach max-attempts. Meant to be run from cron.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := a.cleanupOptions()
			if cmd.Flags().Changed("batch-size") {
				opts.BatchSize = batchSize
			}
			if cmd.Flags().Changed("max-attempts") {
				opts.MaxAttempts = maxAttempts
			}

			summary, err := a.newWorker().Run(ctx, opts)
			if err != nil {
				return err
			}
			return printJSON(summary)
		},
	}
	cleanupCmd.Flags().IntVar(&batchSize, "batch-size", 100, "entries to process in this run (capped at 1000)")
	cleanupCmd.Flags().IntVar(&maxAttempts, "max-attempts", 3, "failed attempts before an entry is dropped")

	statsCmd := &cobra.Command{
		Use:   "queue-stats",
		Short: "Show pending file deletion queue statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := cleanup.NewReporter(a.db).Stats(ctx)
			if err != nil {
				return err
			}
			return printJSON(stats)
		},
	}

	rootCmd.AddCommand(cleanupCmd, statsCmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
