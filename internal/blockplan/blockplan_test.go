package blockplan_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkazin/difgo/internal/blockplan"
)

// spec.md §8 scenario 3: Na=3, Nb=5, block size 2 => 6 blocks, cache_index
// 0..5, total pair count 15.
func TestPair_ScenarioThree(t *testing.T) {
	blocks := blockplan.Pair(3, 5, 2)
	require.Len(t, blocks, 6)

	total := 0
	for i, b := range blocks {
		require.Equal(t, i, b.CacheIndex)
		total += b.PairCount()
	}
	require.Equal(t, 15, total)
}

func TestSingle_CoversUpperTriangleExactlyOnce(t *testing.T) {
	n := int64(7)
	blocks := blockplan.Single(n, 3)

	seen := make(map[[2]int64]bool)
	for _, b := range blocks {
		for x := b.XStart; x < b.XStart+int64(b.XLen); x++ {
			for y := b.YStart; y < b.YStart+int64(b.YLen); y++ {
				if x >= y {
					continue
				}
				key := [2]int64{x, y}
				require.False(t, seen[key], "pair (%d,%d) covered more than once", x, y)
				seen[key] = true
			}
		}
	}

	expected := int(n) * (int(n) - 1) / 2
	require.Equal(t, expected, len(seen))
}

func TestSingle_EmissionOrderIsRowMajor(t *testing.T) {
	blocks := blockplan.Single(10, 4)
	for i := 1; i < len(blocks); i++ {
		prev, cur := blocks[i-1], blocks[i]
		require.True(t, cur.YStart > prev.YStart || (cur.YStart == prev.YStart && cur.XStart > prev.XStart))
	}
}

func TestPair_CoversFullRectangleExactlyOnce(t *testing.T) {
	na, nb := int64(5), int64(4)
	blocks := blockplan.Pair(na, nb, 2)

	seen := make(map[[2]int64]bool)
	for _, b := range blocks {
		for x := b.XStart; x < b.XStart+int64(b.XLen); x++ {
			for y := b.YStart; y < b.YStart+int64(b.YLen); y++ {
				key := [2]int64{x, y}
				require.False(t, seen[key])
				seen[key] = true
			}
		}
	}
	require.Equal(t, int(na*nb), len(seen))
}

func TestResume_SkipsCompletedBlocks(t *testing.T) {
	blocks := blockplan.Single(10, 2)
	resumed := blockplan.Resume(blocks, 1)
	require.Equal(t, 2, resumed[0].CacheIndex)

	require.Equal(t, blocks, blockplan.Resume(blocks, -1))
}

func TestBlock_PairCountDiagonalExcludesSelfPairs(t *testing.T) {
	b := blockplan.Block{XStart: 0, YStart: 0, XLen: 4, YLen: 4}
	require.Equal(t, 6, b.PairCount()) // 4*3/2
}
