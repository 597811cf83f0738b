package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// newRunCmd drives every remaining phase of an existing task to
// completion (spec.md §4.7).
func newRunCmd() *cobra.Command {
	var taskFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run all remaining phases (index must have already happened)",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := openTask(taskFile)
			if err != nil {
				return err
			}
			o, err := openOrchestrator(cfg)
			if err != nil {
				return err
			}
			defer o.Store.Close()
			defer o.Cleanup()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			return o.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&taskFile, "task-file", "", "Task file path (required)")
	_ = cmd.MarkFlagRequired("task-file")
	return cmd
}
