// Package secondloop implements the second-loop worker pool: the hash and
// aspect short-circuits, the thumb-cache-backed pixel diff, and per-pair
// error handling (spec.md §4.6).
//
// Grounded on the teacher's DefaultDistanceGrouper.Group all-pairs
// hash-distance comparison (core/processing/dedup/defaultdistancegrouper.go),
// generalized to pixel diff plus hash/aspect short-circuits and to the
// block-batched arg shape spec.md §4.6 describes.
package secondloop

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/nkazin/difgo/internal/catalog"
	"github.com/nkazin/difgo/internal/imageops"
	"github.com/nkazin/difgo/internal/thumbcache"
)

// Candidate is one y-row a worker must compare x against.
type Candidate struct {
	Key    int64
	Path   string
	Hashes [4]string
	Aspect float64
}

// Arg is one unit of second-loop work: compare x against every y in Ys
// within the block identified by CacheIndex (spec.md §4.6 SecondLoopArgs,
// collapsed from the spec's parallel-arrays shape into a Go slice of
// Candidate).
type Arg struct {
	X          int64
	XPath      string
	XHashes    [4]string
	XAspect    float64
	CacheIndex int
	Ys         []Candidate
}

// Options carries the second-loop short-circuit policy (spec.md §3).
type Options struct {
	SkipMatchingHash     bool
	MatchAspectByEnabled bool
	MatchAspectBy        float64
	Rotate               bool

	// GroupDistanceThreshold, when > 0, adds a fuzzier pre-check ahead of
	// the pixel diff: pairs whose goimagehash difference-hash Hamming
	// distance is within this threshold are treated as a hash match
	// (success=2) even when their stored rotation-hash strings differ.
	// Zero disables it; spec.md's skip_matching_hash only ever does exact
	// string matches (see DESIGN.md).
	GroupDistanceThreshold int

	// CompressionTarget sizes the fallback decode_and_resize call made
	// when a pair has no cached thumbnail (spec.md §4.6 point 3): decode
	// straight from XPath/Candidate.Path as a last resort before giving
	// up, rather than failing the pair outright.
	CompressionTarget int
}

// Result holds the computed or short-circuited pair outcomes for a single
// Arg, one per candidate in Arg.Ys.
type Result struct {
	X          int64
	CacheIndex int
	Outcomes   []catalog.DiffOutcome
}

// Run drains args from a bounded pool of workerCount goroutines, emitting
// one Result per Arg to results. Blocks until args is closed and drained
// or ctx is cancelled.
func Run(ctx context.Context, args <-chan Arg, results chan<- Result, workerCount int, opts Options, cache *thumbcache.Cache) error {
	if workerCount < 1 {
		workerCount = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workerCount; i++ {
		g.Go(func() error {
			return worker(gctx, args, results, opts, cache)
		})
	}
	return g.Wait()
}

func worker(ctx context.Context, args <-chan Arg, results chan<- Result, opts Options, cache *thumbcache.Cache) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case a, ok := <-args:
			if !ok {
				return nil
			}
			r := process(a, opts, cache)
			select {
			case results <- r:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func process(a Arg, opts Options, cache *thumbcache.Cache) Result {
	outcomes := make([]catalog.DiffOutcome, 0, len(a.Ys))
	xThumb, hasXThumb := cache.Get(a.CacheIndex, a.X)

	for _, y := range a.Ys {
		outcomes = append(outcomes, comparePair(a, y, opts, cache, xThumb, hasXThumb))
	}
	return Result{X: a.X, CacheIndex: a.CacheIndex, Outcomes: outcomes}
}

func comparePair(a Arg, y Candidate, opts Options, cache *thumbcache.Cache, xThumb *imageops.Thumbnail, hasXThumb bool) catalog.DiffOutcome {
	keyA, keyB := orderedPair(a.X, y.Key)

	if opts.SkipMatchingHash && hashesMatch(a.XHashes, y.Hashes) {
		return catalog.DiffOutcome{KeyA: keyA, KeyB: keyB, Success: catalog.DiffSkipHashMatch, Dif: 0}
	}
	if opts.MatchAspectByEnabled {
		if abs(a.XAspect-y.Aspect) > opts.MatchAspectBy {
			return catalog.DiffOutcome{KeyA: keyA, KeyB: keyB, Success: catalog.DiffSkipAspectMismatch, Dif: -1}
		}
	}

	if !hasXThumb {
		thumb, err := decodeFallback(a.XPath, opts.CompressionTarget)
		if err != nil {
			return catalog.DiffOutcome{KeyA: keyA, KeyB: keyB, Success: catalog.DiffFailed, Dif: -1, ErrorMsg: fmt.Sprintf("missing cached thumbnail for key %d, decode fallback on %q failed: %v", a.X, a.XPath, err)}
		}
		xThumb = thumb
	}

	yThumb, ok := cache.Get(a.CacheIndex, y.Key)
	if ok && opts.GroupDistanceThreshold > 0 {
		if d, err := imageops.DifferenceHashDistance(xThumb, yThumb); err == nil && d <= opts.GroupDistanceThreshold {
			return catalog.DiffOutcome{KeyA: keyA, KeyB: keyB, Success: catalog.DiffSkipHashMatch, Dif: 0}
		}
	}
	if !ok {
		thumb, err := decodeFallback(y.Path, opts.CompressionTarget)
		if err != nil {
			return catalog.DiffOutcome{KeyA: keyA, KeyB: keyB, Success: catalog.DiffFailed, Dif: -1, ErrorMsg: fmt.Sprintf("missing cached thumbnail for key %d, decode fallback on %q failed: %v", y.Key, y.Path, err)}
		}
		yThumb = thumb
	}

	dif := imageops.Diff(xThumb, yThumb, opts.Rotate)
	return catalog.DiffOutcome{KeyA: keyA, KeyB: keyB, Success: catalog.DiffComputed, Dif: dif}
}

// decodeFallback re-decodes and resizes an image straight from disk when no
// cached thumbnail is available, the last resort spec.md §4.6 point 3
// describes before a pair is recorded as failed.
func decodeFallback(path string, target int) (*imageops.Thumbnail, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	thumb, _, _, err := imageops.DecodeAndResize(path, f, target)
	return thumb, err
}

// orderedPair enforces spec.md §3's diff-entry invariant: key_a < key_b
// when both keys come from the same partition (here, whichever is
// numerically smaller), and key_a is always drawn from partition A in the
// two-partition case (already guaranteed upstream by blockplan.Pair, which
// always sets Arg.X from partition A).
func orderedPair(x, y int64) (int64, int64) {
	if x < y {
		return x, y
	}
	return y, x
}

func hashesMatch(a, b [4]string) bool {
	for _, ha := range a {
		if ha == "" {
			continue
		}
		for _, hb := range b {
			if ha == hb {
				return true
			}
		}
	}
	return false
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
