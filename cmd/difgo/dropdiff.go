package main

import (
	"github.com/spf13/cobra"
)

// newDropDiffCmd removes diff rows above a threshold, a maintenance
// operation for shrinking a catalog before re-querying (spec.md §4.1,
// §8 scenario 6).
func newDropDiffCmd() *cobra.Command {
	var taskFile string
	var threshold float64

	cmd := &cobra.Command{
		Use:   "drop-diff",
		Short: "Delete computed diff rows above a threshold",
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

			return o.Store.DropDiffAbove(float32(threshold))
		},
	}

	cmd.Flags().StringVar(&taskFile, "task-file", "", "Task file path (required)")
	cmd.Flags().Float64Var(&threshold, "threshold", 200, "Drop computed pairs with dif above this value")
	_ = cmd.MarkFlagRequired("task-file")
	return cmd
}
