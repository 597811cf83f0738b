// Package orchestrator drives the Progress state machine that owns the
// catalog, config, and worker pools: full_index, first_loop, second_loop,
// and cleanup (spec.md §4.7).
//
// Grounded on the teacher's core/task + internal/handlers Task/TaskExecutor
// split (persisted state, one handler per phase) and on
// ivoronin-dupedog/cmd/dupedog/dedupe.go's runDedupe phase-pipeline
// function for the "drive phase, check cancellation, persist, advance"
// shape. Progress messages use github.com/dustin/go-humanize for byte/file
// counts, as ivoronin-dupedog's deduper does.
package orchestrator

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/nkazin/difgo/internal/blockplan"
	"github.com/nkazin/difgo/internal/catalog"
	"github.com/nkazin/difgo/internal/config"
	"github.com/nkazin/difgo/internal/errs"
	"github.com/nkazin/difgo/internal/firstloop"
	"github.com/nkazin/difgo/internal/i18n"
	"github.com/nkazin/difgo/internal/logx"
	"github.com/nkazin/difgo/internal/secondloop"
	"github.com/nkazin/difgo/internal/thumbcache"
	"github.com/nkazin/difgo/internal/walkmeta"
)

// Orchestrator owns the catalog connection, the config snapshot, and the
// worker pools it drives through the Progress state machine. Only the
// orchestrator mutates the catalog or the config (spec.md §5). L localizes
// the phase-narration strings Log prints; the catalog's own FieldLogger
// carries the lower-level claim/commit telemetry.
type Orchestrator struct {
	Store *catalog.Store
	Cfg   *config.Config
	Log   logx.Logger
	L     i18n.Localizer
}

// New wires a store, config, logger, and localizer into an Orchestrator.
func New(store *catalog.Store, cfg *config.Config, log logx.Logger, loc i18n.Localizer) *Orchestrator {
	return &Orchestrator{Store: store, Cfg: cfg, Log: log, L: loc}
}

func (o *Orchestrator) persist(next config.Progress) error {
	o.Cfg.State = next
	if err := o.Cfg.Save(); err != nil {
		return &errs.ResumeError{Msg: "failed to persist config snapshot", Err: err}
	}
	return nil
}

// FullIndex walks both partitions, validates roots, bulk-inserts file
// entries, and repopulates dense keys (spec.md §4.7 INIT -> INDEXED).
func (o *Orchestrator) FullIndex(ctx context.Context) error {
	if err := o.Cfg.Validate(); err != nil {
		return err
	}

	entriesA, err := walkmeta.Walk(o.Cfg.PartA, walkmeta.Options{
		Recurse:           o.Cfg.Recurse,
		AllowedExtensions: o.Cfg.AllowedExtensions,
		IgnoreNames:       o.Cfg.IgnoreNames,
		IgnorePaths:       o.Cfg.IgnorePaths,
		PartB:             false,
		DirIndex:          0,
	})
	if err != nil {
		return &errs.StoreError{Op: "walk part_a", Err: err}
	}
	entries := entriesA

	if o.Cfg.PartB != "" {
		entriesB, err := walkmeta.Walk(o.Cfg.PartB, walkmeta.Options{
			Recurse:           o.Cfg.Recurse,
			AllowedExtensions: o.Cfg.AllowedExtensions,
			IgnoreNames:       o.Cfg.IgnoreNames,
			IgnorePaths:       o.Cfg.IgnorePaths,
			PartB:             true,
			DirIndex:          1,
		})
		if err != nil {
			return &errs.StoreError{Op: "walk part_b", Err: err}
		}
		entries = append(entries, entriesB...)
	}

	o.Log.Info(o.L.Translate("IndexStarted", map[string]interface{}{"PartA": o.Cfg.PartA, "PartB": o.Cfg.PartB}))

	if err := o.Store.InsertFiles(entries); err != nil {
		return err
	}
	if err := o.Store.Repopulate(); err != nil {
		return err
	}

	o.Log.Info(o.L.Translate("IndexDone", map[string]interface{}{"Count": len(entries), "Allowed": allowedCount(entries)}))
	o.Log.Infof("indexed %s", humanize.Bytes(totalSize(entries)))

	return o.persist(config.Indexed)
}

func totalSize(entries []catalog.FileEntry) uint64 {
	var n uint64
	for _, e := range entries {
		n += uint64(e.Size)
	}
	return n
}

func allowedCount(entries []catalog.FileEntry) int {
	n := 0
	for _, e := range entries {
		if e.Allowed {
			n++
		}
	}
	return n
}

// FirstLoop drains the catalog's queued rows through the first-loop worker
// pool until none remain, committing results in bulk as they arrive
// (spec.md §4.5, §4.7 INDEXED -> FIRST_LOOP_IN_PROGRESS -> FIRST_LOOP_DONE).
//
// Resume: any success=-2 (claimed but unfinished) row is reset to -1 on
// entry, per spec.md §4.5.
func (o *Orchestrator) FirstLoop(ctx context.Context) error {
	if reset, err := o.Store.ResetClaimed(); err != nil {
		return err
	} else if reset > 0 {
		o.Log.Info(o.L.Translate("ResumeReset", map[string]interface{}{"Count": reset}))
	}

	if err := o.persist(config.FirstLoopInProgress); err != nil {
		return err
	}

	total, err := o.Store.CountByPartition(false, true)
	if err != nil {
		return err
	}
	totalB, err := o.Store.CountByPartition(true, true)
	if err != nil {
		return err
	}
	claimable := total + totalB

	// Sequential unless parallel first-loop processing is both enabled and
	// the claimable total is at least the CPU count (original_source/src/
	// fast_diff_py/fast_dif.py:927-929,1087-1088 only spins up workers
	// when there's enough work to keep them busy; spec.md §4.5).
	workerCount := o.Cfg.SecondLoop.CPUProc
	if workerCount < 1 {
		workerCount = 1
	}
	if !o.Cfg.FirstLoop.Parallel || claimable < workerCount {
		workerCount = 1
	}

	opts := firstloop.Options{
		CompressionTarget: o.Cfg.CompressionTarget,
		ThumbDir:          o.Cfg.ThumbDir,
		FirstLoop:         o.Cfg.FirstLoop,
	}

	o.Log.Info(o.L.Translate("FirstLoopStarted", map[string]interface{}{"Count": claimable, "Workers": workerCount}))

	var processed, failed int
	for {
		select {
		case <-ctx.Done():
			o.Log.Warn(o.L.Translate("Interrupted", map[string]interface{}{"State": string(config.FirstLoopInProgress)}))
			return &errs.Interrupted{State: string(config.FirstLoopInProgress)}
		default:
		}

		batchSize := o.Cfg.FirstLoop.BatchSize
		if batchSize <= 0 {
			batchSize = config.DefaultBatchSize(claimable, workerCount, 256)
		}

		claimed, err := o.Store.ClaimBatch(batchSize)
		if err != nil {
			return err
		}
		if len(claimed) == 0 {
			break
		}

		args := make(chan firstloop.Arg, len(claimed))
		results := make(chan catalog.PreprocessUpdate, len(claimed))
		for _, c := range claimed {
			args <- firstloop.Arg{Key: c.Key, Path: c.Path}
		}
		close(args)

		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- firstloop.Run(runCtx, args, results, workerCount, opts, o.Log) }()

		updates := make([]catalog.PreprocessUpdate, 0, len(claimed))
		for i := 0; i < len(claimed); i++ {
			updates = append(updates, <-results)
		}
		cancel()
		if err := <-done; err != nil {
			return err
		}

		ok, batchFailed, err := o.Store.RecordPreprocessResults(updates)
		if err != nil {
			return err
		}
		processed += ok
		failed += batchFailed
	}

	o.Log.Info(o.L.Translate("FirstLoopDone", map[string]interface{}{"Processed": processed, "Failed": failed}))
	return o.persist(config.FirstLoopDone)
}

// SecondLoop builds the block plan for the catalog's allowed rows and
// drains it through the second-loop worker pool, inserting filtered
// outcomes in bulk per block (spec.md §4.3, §4.4, §4.6, §4.7
// FIRST_LOOP_DONE -> SECOND_LOOP_IN_PROGRESS -> SECOND_LOOP_DONE).
func (o *Orchestrator) SecondLoop(ctx context.Context) error {
	if err := o.Store.CreateDiffTables(); err != nil {
		return err
	}
	if err := o.persist(config.SecondLoopInProgress); err != nil {
		return err
	}

	na, err := o.Store.CountByPartition(false, true)
	if err != nil {
		return err
	}
	nb, err := o.Store.CountByPartition(true, true)
	if err != nil {
		return err
	}

	blockSize := o.Cfg.SecondLoop.BatchSize
	var blocks []blockplan.Block
	if nb > 0 {
		blocks = blockplan.Pair(int64(na), int64(nb), blockSize)
	} else {
		blocks = blockplan.Single(int64(na), blockSize)
	}

	workerCount := o.Cfg.SecondLoop.CPUProc
	if workerCount < 1 {
		workerCount = 1
	}
	maxResident := o.Cfg.SecondLoop.PreloadCount + 1
	cache := thumbcache.New(o.Cfg.ThumbDir, o.Cfg.CompressionTarget, maxResident)

	opts := secondloop.Options{
		SkipMatchingHash:       o.Cfg.SecondLoop.SkipMatchingHash,
		MatchAspectByEnabled:   o.Cfg.SecondLoop.MatchAspectByEnabled,
		MatchAspectBy:          o.Cfg.SecondLoop.MatchAspectBy,
		Rotate:                 o.Cfg.Rotate,
		GroupDistanceThreshold: o.Cfg.SecondLoop.GroupDistanceThreshold,
		CompressionTarget:      o.Cfg.CompressionTarget,
	}

	o.Log.Info(o.L.Translate("SecondLoopStarted", map[string]interface{}{"Blocks": len(blocks), "BlockSize": blockSize}))

	var pairs int
	for _, b := range blocks {
		select {
		case <-ctx.Done():
			o.Log.Warn(o.L.Translate("Interrupted", map[string]interface{}{"State": string(config.SecondLoopInProgress)}))
			return &errs.Interrupted{State: string(config.SecondLoopInProgress)}
		default:
		}

		n, err := o.processBlock(ctx, b, cache, opts, workerCount)
		if err != nil {
			return err
		}
		pairs += n
	}

	o.Log.Info(o.L.Translate("SecondLoopDone", map[string]interface{}{"Pairs": pairs}))
	return o.persist(config.SecondLoopDone)
}

func (o *Orchestrator) processBlock(ctx context.Context, b blockplan.Block, cache *thumbcache.Cache, opts secondloop.Options, workerCount int) (int, error) {
	if err := cache.LoadBlock(b); err != nil {
		return 0, &errs.StoreError{Op: "load thumbnail block", Err: err}
	}

	xRows, err := o.Store.FetchBlockRows(b.XStart, b.XLen)
	if err != nil {
		return 0, err
	}
	var yRows []catalog.BlockRow
	if b.XStart == b.YStart {
		yRows = xRows
	} else {
		yRows, err = o.Store.FetchBlockRows(b.YStart, b.YLen)
		if err != nil {
			return 0, err
		}
	}

	ys := make([]secondloop.Candidate, len(yRows))
	for i, r := range yRows {
		ys[i] = secondloop.Candidate{Key: r.Key, Path: r.Path, Hashes: r.Hashes, Aspect: r.Aspect}
	}

	args := make(chan secondloop.Arg, len(xRows))
	results := make(chan secondloop.Result, len(xRows))
	sent := 0
	for _, x := range xRows {
		var candidates []secondloop.Candidate
		if b.XStart == b.YStart {
			for _, c := range ys {
				if c.Key > x.Key {
					candidates = append(candidates, c)
				}
			}
		} else {
			candidates = ys
		}
		if len(candidates) == 0 {
			// No candidates for this x (e.g. it's the last key on the
			// diagonal): mark it done immediately since no worker will.
			cache.MarkDone(b.CacheIndex, x.Key)
			continue
		}
		args <- secondloop.Arg{
			X:          x.Key,
			XPath:      x.Path,
			XHashes:    x.Hashes,
			XAspect:    x.Aspect,
			CacheIndex: b.CacheIndex,
			Ys:         candidates,
		}
		sent++
	}
	close(args)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- secondloop.Run(runCtx, args, results, workerCount, opts, cache) }()

	var outcomes []catalog.DiffOutcome
	for r := range drain(results, sent) {
		for _, oc := range r.Outcomes {
			if keepOutcome(oc, o.Cfg.SecondLoop) {
				outcomes = append(outcomes, oc)
			}
		}
		cache.MarkDone(r.CacheIndex, r.X)
	}
	if err := <-done; err != nil {
		return 0, err
	}

	if err := o.Store.InsertDiffOutcomes(outcomes); err != nil {
		return 0, err
	}
	return len(outcomes), nil
}

// drain reads exactly n results from results (or fewer if the channel is
// closed early by a cancelled run) and returns them over a closed channel,
// since n (the number of args sent) may be smaller than len(xRows) when
// diagonal blocks drop rows with no y candidates.
func drain(results <-chan secondloop.Result, n int) <-chan secondloop.Result {
	out := make(chan secondloop.Result, n)
	go func() {
		defer close(out)
		for i := 0; i < n; i++ {
			r, ok := <-results
			if !ok {
				return
			}
			out <- r
		}
	}()
	return out
}

func keepOutcome(oc catalog.DiffOutcome, cfg config.SecondLoopConfig) bool {
	switch oc.Success {
	case catalog.DiffSkipAspectMismatch:
		return cfg.KeepNonMatchingAspects
	case catalog.DiffComputed:
		return oc.Dif < cfg.DiffThreshold
	default:
		return true
	}
}

// Cleanup removes the database and/or thumbnail directory per the
// retain_progress/delete_db/delete_thumb policy (spec.md §3 Configuration
// table), grounded on fast_dif.py's run() cleanup pass.
func (o *Orchestrator) Cleanup() error {
	if o.Cfg.RetainProgress {
		return nil
	}
	if o.Cfg.DeleteDB {
		if err := os.Remove(o.Store.Path()); err != nil && !os.IsNotExist(err) {
			return &errs.StoreError{Op: "delete db file", Err: err}
		}
	}
	if o.Cfg.DeleteThumb {
		if err := os.RemoveAll(o.Cfg.ThumbDir); err != nil {
			return &errs.StoreError{Op: "delete thumb dir", Err: err}
		}
	}
	return nil
}

// Run drives the full pipeline from the config's persisted State through
// to SECOND_LOOP_DONE, skipping phases already completed on resume
// (spec.md §4.7).
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.Cfg.State == config.Init {
		if err := o.FullIndex(ctx); err != nil {
			return err
		}
	}
	if o.Cfg.State == config.Indexed || o.Cfg.State == config.FirstLoopInProgress {
		if err := o.FirstLoop(ctx); err != nil {
			return err
		}
	}
	if o.Cfg.State == config.FirstLoopDone || o.Cfg.State == config.SecondLoopInProgress {
		if err := o.SecondLoop(ctx); err != nil {
			return err
		}
	}
	if o.Cfg.State != config.SecondLoopDone {
		return &errs.ResumeError{Msg: fmt.Sprintf("unrecognized terminal state %q", o.Cfg.State)}
	}
	o.Log.Info(o.L.Translate("RunComplete"))
	return nil
}
