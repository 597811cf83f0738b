// Package blockplan builds the ordered list of second-loop work blocks that
// tile the upper-triangular (single partition) or full rectangular
// (two-partition) Cartesian product of catalog keys, per spec.md §4.3.
//
// These are pure functions over sizes and a block edge, grounded on the
// teacher's DefaultDistanceGrouper.Group all-pairs loop structure
// (core/processing/dedup/defaultdistancegrouper.go), generalized from a
// flat double loop to an explicit, restartable block plan.
package blockplan

// Block is a single unit of second-loop work: the rectangle
// [XStart, XStart+XLen) x [YStart, YStart+YLen) of catalog keys, along with
// the cache slot it should load its thumbnails into. Blocks are emitted in
// row-major order of (XStart, YStart); CacheIndex is both that emission
// order and the cache slot id (spec.md §4.3).
type Block struct {
	XStart, YStart int64
	XLen, YLen     int
	CacheIndex     int
}

// Single enumerates the upper-triangular block plan for one partition of
// size n with block edge size. Blocks cover 0 <= x <= y < n; within a block
// the worker only compares pairs where the absolute y-key is greater than
// the absolute x-key (the diagonal half is skipped by the caller, not by
// this plan).
func Single(n int64, size int) []Block {
	if n <= 0 || size <= 0 {
		return nil
	}
	var blocks []Block
	idx := 0
	for y := int64(0); y < n; y += int64(size) {
		for x := int64(0); x <= y; x += int64(size) {
			blocks = append(blocks, Block{
				XStart:     x,
				YStart:     y,
				XLen:       clampLen(x, n, size),
				YLen:       clampLen(y, n, size),
				CacheIndex: idx,
			})
			idx++
		}
	}
	return blocks
}

// Pair enumerates the full-rectangle block plan for two partitions of sizes
// na (A) and nb (B), with A's keys at [0,na) and B's keys at [na, na+nb).
// Every ordered (a,b) pair is covered exactly once; key_a is always drawn
// from partition A (spec.md §9, resolved Open Question).
func Pair(na, nb int64, size int) []Block {
	if na <= 0 || nb <= 0 || size <= 0 {
		return nil
	}
	var blocks []Block
	idx := 0
	for y := na; y < na+nb; y += int64(size) {
		for x := int64(0); x < na; x += int64(size) {
			blocks = append(blocks, Block{
				XStart:     x,
				YStart:     y,
				XLen:       clampLen(x, na, size),
				YLen:       clampLen(y-na, nb, size) ,
				CacheIndex: idx,
			})
			idx++
		}
	}
	return blocks
}

func clampLen(start, total int64, size int) int {
	remaining := total - start
	if remaining > int64(size) {
		return size
	}
	return int(remaining)
}

// Resume returns the sub-slice of blocks starting from the block whose
// CacheIndex is finishedCacheIndex+1, per spec.md §4.3's restart rule. If
// finishedCacheIndex is negative, the whole plan is returned.
func Resume(blocks []Block, finishedCacheIndex int) []Block {
	if finishedCacheIndex < 0 {
		return blocks
	}
	for i, b := range blocks {
		if b.CacheIndex == finishedCacheIndex+1 {
			return blocks[i:]
		}
	}
	return nil
}

// PairCount returns the number of unordered (x,y) pairs a block covers
// under the upper-triangular rule: all (x_len * y_len) cells, minus the
// half of the diagonal's own square that lies at or below the diagonal,
// for blocks that straddle x==y (i.e. diagonal blocks, XStart==YStart).
func (b Block) PairCount() int {
	if b.XStart != b.YStart {
		return b.XLen * b.YLen
	}
	// Diagonal block: only x < y contributes (x==y is never a pair).
	n := b.XLen
	return n * (n - 1) / 2
}
