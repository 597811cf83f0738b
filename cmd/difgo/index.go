package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nkazin/difgo/internal/config"
)

type indexOptions struct {
	partB             string
	recurse           bool
	allowedExtensions []string
	compressionTarget int
	rotate            bool
	shiftAmount       int
	taskFile          string
	dbFile            string
	thumbDir          string
}

// newIndexCmd creates a fresh task file and catalog, then walks and
// indexes the given root(s) (spec.md §4.7 INIT -> INDEXED).
func newIndexCmd() *cobra.Command {
	opts := &indexOptions{
		recurse:           true,
		allowedExtensions: []string{".jpg", ".jpeg", ".png", ".gif", ".bmp"},
		compressionTarget: 64,
	}

	cmd := &cobra.Command{
		Use:   "index <part-a>",
		Short: "Walk and index one or two directory trees into a fresh catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			partA := args[0]
			cfg := config.Default()
			cfg.PartA = partA
			cfg.PartB = opts.partB
			cfg.Recurse = opts.recurse
			cfg.AllowedExtensions = opts.allowedExtensions
			cfg.CompressionTarget = opts.compressionTarget
			cfg.Rotate = opts.rotate
			cfg.FirstLoop.ShiftAmount = opts.shiftAmount

			cfg.TaskFile = opts.taskFile
			if cfg.TaskFile == "" {
				cfg.TaskFile = defaultTaskFile(partA)
			}
			cfg.DBFile = opts.dbFile
			if cfg.DBFile == "" {
				cfg.DBFile = filepath.Join(partA, ".fast_diff.db")
			}
			cfg.ThumbDir = opts.thumbDir
			if cfg.ThumbDir == "" {
				cfg.ThumbDir = filepath.Join(partA, ".temp_thumb")
			}

			o, err := openOrchestrator(cfg)
			if err != nil {
				return err
			}
			defer o.Store.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			return o.FullIndex(ctx)
		},
	}

	cmd.Flags().StringVar(&opts.partB, "part-b", "", "Second root (optional, for cross-partition comparison)")
	cmd.Flags().BoolVar(&opts.recurse, "recurse", opts.recurse, "Descend into subdirectories")
	cmd.Flags().StringSliceVar(&opts.allowedExtensions, "ext", opts.allowedExtensions, "Allowed file extensions")
	cmd.Flags().IntVar(&opts.compressionTarget, "compression-target", opts.compressionTarget, "Thumbnail edge in pixels")
	cmd.Flags().BoolVar(&opts.rotate, "rotate", opts.rotate, "Consider all four rotations when diffing")
	cmd.Flags().IntVar(&opts.shiftAmount, "shift-amount", opts.shiftAmount, "Bit-shift for hash quantization, in [-7,7]")
	cmd.Flags().StringVar(&opts.taskFile, "task-file", "", "Task file path (default <part-a>/.task.yaml)")
	cmd.Flags().StringVar(&opts.dbFile, "db-file", "", "Catalog database path (default <part-a>/.fast_diff.db)")
	cmd.Flags().StringVar(&opts.thumbDir, "thumb-dir", "", "Thumbnail directory (default <part-a>/.temp_thumb)")

	return cmd
}
