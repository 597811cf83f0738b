// Package thumbcache holds the reference-counted, block-scoped in-memory
// thumbnail cache the second-loop worker pool reads from (spec.md §4.4).
//
// Grounded on ivoronin-dupedog's internal/cache (refcount + eviction doc
// style) and blockplan's block descriptors, but not on that package's
// persistence mechanism: a BoltDB-backed cache is the wrong shape for a
// structure that only ever holds a handful of blocks' worth of thumbnails
// at a time and is rebuilt fresh on every run (see DESIGN.md).
package thumbcache

import (
	"fmt"
	"os"
	"sync"

	"github.com/nkazin/difgo/internal/blockplan"
	"github.com/nkazin/difgo/internal/imageops"
)

type slot struct {
	thumbs   map[int64]*imageops.Thumbnail
	progress map[int64]bool // x_key -> done, seeded from the block's x-window
}

// Cache is the orchestrator-owned, block-scoped thumbnail cache. Safe for
// concurrent use by worker goroutines reading Get while the orchestrator
// loads and evicts blocks.
type Cache struct {
	mu                 sync.Mutex
	thumbDir           string
	edge               int
	slots              map[int]*slot
	finishedCacheIndex int
	maxResident        int
}

// New creates a cache that reads thumbnail PNGs of the given edge size from
// thumbDir, with maxResident (spec.md §4.4: preload_count+1) as the cap
// CanLoad reports against. LoadBlock itself does not check the cap.
func New(thumbDir string, edge int, maxResident int) *Cache {
	return &Cache{
		thumbDir:           thumbDir,
		edge:               edge,
		slots:              make(map[int]*slot),
		finishedCacheIndex: -1,
		maxResident:         maxResident,
	}
}

// FinishedCacheIndex returns the highest cache_index fully evicted so far,
// or -1 if none. Monotone non-decreasing over a run (spec.md §8).
func (c *Cache) FinishedCacheIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finishedCacheIndex
}

// CanLoad reports whether another block may be loaded without exceeding
// the resident cap (spec.md §4.4 "cap concurrently-resident blocks").
func (c *Cache) CanLoad() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots) < c.maxResident
}

// LoadBlock eagerly reads the thumbnails for a block's x-window, and its
// y-window when the block is off-diagonal (a single window is shared on
// the diagonal), per spec.md §4.4.
func (c *Cache) LoadBlock(b blockplan.Block) error {
	thumbs := make(map[int64]*imageops.Thumbnail)
	progress := make(map[int64]bool)

	for k := b.XStart; k < b.XStart+int64(b.XLen); k++ {
		t, err := c.readThumb(k)
		if err != nil {
			return err
		}
		thumbs[k] = t
		progress[k] = false
	}
	if b.XStart != b.YStart {
		for k := b.YStart; k < b.YStart+int64(b.YLen); k++ {
			t, err := c.readThumb(k)
			if err != nil {
				return err
			}
			thumbs[k] = t
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots[b.CacheIndex] = &slot{thumbs: thumbs, progress: progress}
	return nil
}

func (c *Cache) readThumb(key int64) (*imageops.Thumbnail, error) {
	path := fmt.Sprintf("%s/%d.png", c.thumbDir, key)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	thumb, _, _, err := imageops.DecodeAndResize(path, f, c.edge)
	return thumb, err
}

// Get returns a read-only handle to the thumbnail for key within the given
// cache slot. Callers must not mutate the returned buffer; it is shared
// across every worker reading that slot (spec.md §9: workers receive a
// read-only handle, not a deep copy).
func (c *Cache) Get(cacheIndex int, key int64) (*imageops.Thumbnail, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[cacheIndex]
	if !ok {
		return nil, false
	}
	t, ok := s.thumbs[key]
	return t, ok
}

// MarkDone records that the worker handling x_key within cacheIndex has
// returned its result, then evicts the lowest cache_index slot once every
// x_key in it is done (spec.md §4.4 lifecycle).
func (c *Cache) MarkDone(cacheIndex int, xKey int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[cacheIndex]
	if !ok {
		return
	}
	s.progress[xKey] = true
	c.evictReady()
}

func (c *Cache) evictReady() {
	for {
		lowest := -1
		for idx := range c.slots {
			if lowest == -1 || idx < lowest {
				lowest = idx
			}
		}
		if lowest == -1 {
			return
		}
		s := c.slots[lowest]
		for _, done := range s.progress {
			if !done {
				return
			}
		}
		delete(c.slots, lowest)
		c.finishedCacheIndex = lowest
	}
}

// Resident reports how many blocks are currently cached, for tests and
// backpressure diagnostics.
func (c *Cache) Resident() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}
