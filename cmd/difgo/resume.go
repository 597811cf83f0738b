package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/nkazin/difgo/internal/config"
)

// newResumeCmd resumes a task that was interrupted mid-phase, normalizing
// any claimed-but-unfinished rows before continuing (spec.md §4.5, §4.7).
func newResumeCmd() *cobra.Command {
	var taskFile string

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume an interrupted run from its last committed checkpoint",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := openTask(taskFile)
			if err != nil {
				return err
			}
			if cfg.State == config.SecondLoopDone {
				fmt.Println("nothing to resume: run already reached SECOND_LOOP_DONE")
				return nil
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
