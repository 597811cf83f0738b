// Package firstloop implements the first-loop worker pool: decode, resize,
// write a thumbnail PNG, optionally hash, per file (spec.md §4.5).
//
// Grounded on the teacher's DefaultPHasher.HashFiles worker-pool shape
// (core/processing/dedup/defaultphasher.go), generalized from "hash a
// path" to "decode, resize, write thumbnail, hash", and using
// golang.org/x/sync/errgroup for fan-out/join the way the pack's heavier
// pipelines do (ivoronin-dupedog's scanner.go/verifier.go).
package firstloop

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/nkazin/difgo/internal/catalog"
	"github.com/nkazin/difgo/internal/config"
	"github.com/nkazin/difgo/internal/imageops"
	"github.com/nkazin/difgo/internal/logx"
)

// Arg is one unit of first-loop work: a claimed catalog row to preprocess.
type Arg struct {
	Key  int64
	Path string
}

// Options bundles the settings a first-loop worker needs beyond the
// per-file Arg: the thumbnail edge, output directory, and hashing policy
// (spec.md §3, §4.5).
type Options struct {
	CompressionTarget int
	ThumbDir          string
	FirstLoop         config.FirstLoopConfig
}

// Run drains args from a bounded pool of workerCount goroutines, writing
// each result to results as it completes. It blocks until every arg has
// been processed or ctx is cancelled. args must be closed by the caller
// once all work for the current batch has been sent; Run does not close
// results.
func Run(ctx context.Context, args <-chan Arg, results chan<- catalog.PreprocessUpdate, workerCount int, opts Options, log logx.Logger) error {
	if workerCount < 1 {
		workerCount = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workerCount; i++ {
		g.Go(func() error {
			return worker(gctx, args, results, opts, log)
		})
	}
	return g.Wait()
}

func worker(ctx context.Context, args <-chan Arg, results chan<- catalog.PreprocessUpdate, opts Options, log logx.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case a, ok := <-args:
			if !ok {
				return nil
			}
			update := process(a, opts, log)
			select {
			case results <- update:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// process handles one file: any error is captured on the update rather
// than returned, so a single bad file never terminates the worker
// (spec.md §4.5).
func process(a Arg, opts Options, log logx.Logger) catalog.PreprocessUpdate {
	f, err := os.Open(a.Path)
	if err != nil {
		log.Debugf("firstloop: open %s: %v", a.Path, err)
		return catalog.PreprocessUpdate{Key: a.Key, OK: false, ErrorMsg: err.Error()}
	}
	defer f.Close()

	thumb, ox, oy, err := imageops.DecodeAndResize(a.Path, f, opts.CompressionTarget)
	if err != nil {
		log.Debugf("firstloop: decode %s: %v", a.Path, err)
		return catalog.PreprocessUpdate{Key: a.Key, OK: false, ErrorMsg: err.Error()}
	}

	if err := writeThumb(opts.ThumbDir, a.Key, thumb); err != nil {
		return catalog.PreprocessUpdate{Key: a.Key, OK: false, ErrorMsg: err.Error()}
	}

	update := catalog.PreprocessUpdate{Key: a.Key, OK: true, PX: ox, PY: oy}
	if opts.FirstLoop.ComputeHash {
		update.HasHash = true
		update.Hashes = imageops.RotatedHashes(thumb, opts.FirstLoop.ShiftAmount)
	}
	return update
}

func writeThumb(thumbDir string, key int64, thumb *imageops.Thumbnail) error {
	if err := os.MkdirAll(thumbDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(thumbDir, fmt.Sprintf("%d.png", key))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, imageops.ToImage(thumb))
}
