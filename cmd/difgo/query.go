package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newQueryCmd groups the read-only reporting subcommands (spec.md §6).
func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query duplicate pairs or clusters from a finished catalog",
	}
	cmd.AddCommand(newQueryPairsCmd())
	cmd.AddCommand(newQueryClustersCmd())
	return cmd
}

func newQueryPairsCmd() *cobra.Command {
	var taskFile string
	var delta float64
	var includeHashMatch bool

	cmd := &cobra.Command{
		Use:   "pairs",
		Short: "List duplicate pairs with dif below a threshold",
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

			pairs, err := o.Store.GetDiffPairs(float32(delta), includeHashMatch)
			if err != nil {
				return err
			}
			for _, p := range pairs {
				fmt.Printf("%s\t%s\t%.4f\n", p.PathA, p.PathB, p.Dif)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&taskFile, "task-file", "", "Task file path (required)")
	cmd.Flags().Float64Var(&delta, "delta", 200, "Maximum dif (strict <) to include")
	cmd.Flags().BoolVar(&includeHashMatch, "include-hash-match", false, "Include hash-short-circuited pairs")
	_ = cmd.MarkFlagRequired("task-file")
	return cmd
}

func newQueryClustersCmd() *cobra.Command {
	var taskFile string
	var delta float64
	var groupA bool
	var includeHashMatch bool

	cmd := &cobra.Command{
		Use:   "clusters",
		Short: "Group duplicate pairs by anchor path",
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

			clusters, err := o.Store.GetCluster(float32(delta), groupA, includeHashMatch)
			if err != nil {
				return err
			}
			for anchor, peers := range clusters {
				fmt.Println(anchor + ":")
				for peer, dif := range peers {
					fmt.Printf("\t%s\t%.4f\n", peer, dif)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&taskFile, "task-file", "", "Task file path (required)")
	cmd.Flags().Float64Var(&delta, "delta", 200, "Maximum dif (strict <) to include")
	cmd.Flags().BoolVar(&groupA, "group-a", true, "Group by partition A's key (vs. B's)")
	cmd.Flags().BoolVar(&includeHashMatch, "include-hash-match", false, "Include hash-short-circuited pairs")
	_ = cmd.MarkFlagRequired("task-file")
	return cmd
}
