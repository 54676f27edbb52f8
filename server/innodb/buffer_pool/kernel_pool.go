package buffer_pool

import (
	"sync"

	"github.com/go-innodb/storedb/server/innodb/btree"
	"github.com/go-innodb/storedb/server/innodb/mtr"
	"github.com/juju/errors"
)

// Loader fetches a page's logical content on a cache miss, standing in for
// the external page-frame allocator that would otherwise read the frame
// off disk.
type Loader func(spaceID, pageNo uint32) (*btree.Page, error)

// KernelPool adapts OptimizedLRUCache into the btree.Pool the core
// components latch pages through. OptimizedLRUCache still owns residency,
// the young/old split and eviction; KernelPool keeps a parallel table of
// the parsed btree.Block for each resident key and tears a block down the
// moment the cache evicts its frame, so the two structures never drift
// apart.
type KernelPool struct {
	cache *OptimizedLRUCache
	load  Loader

	mu     sync.Mutex
	blocks map[uint64]*btree.Block
}

// NewKernelPool builds a pool of size frames, splitting the promoted
// portion between young and old sublists per oldPercent/youngPercent and
// gating young-promotion on oldThresholdMs (buf_LRU_old_threshold_ms).
func NewKernelPool(size int, youngPercent, oldPercent float64, oldThresholdMs int, load Loader) *KernelPool {
	kp := &KernelPool{
		cache:  NewOptimizedLRUCache(size, youngPercent, oldPercent, oldThresholdMs),
		load:   load,
		blocks: make(map[uint64]*btree.Block),
	}
	kp.cache.evictedFunc = kp.onEvict
	return kp
}

func (kp *KernelPool) onEvict(key, _ interface{}) {
	k, ok := key.(uint64)
	if !ok {
		return
	}
	kp.mu.Lock()
	delete(kp.blocks, k)
	kp.mu.Unlock()
}

// Get satisfies btree.Pool: on a resident key it advances the cache's own
// young/old bookkeeping and returns the tracked block; on a miss it calls
// Loader and inserts the result at the head of the old sublist, mirroring
// the real buffer pool's "reads start cold" rule (spec §4.4).
func (kp *KernelPool) Get(spaceID, pageNo uint32, latch btree.LatchMode, m *mtr.Mtr) (*btree.Block, error) {
	key := kp.cache.generateKey(spaceID, pageNo)

	kp.mu.Lock()
	block, resident := kp.blocks[key]
	kp.mu.Unlock()

	if resident {
		if _, err := kp.cache.Get(spaceID, pageNo); err != nil {
			// The cache's own bookkeeping fell out of step with ours
			// (e.g. Purge ran concurrently); re-seat the placeholder
			// rather than surface a miss for a block we still hold.
			kp.cache.Set(spaceID, pageNo, placeholderBlock(spaceID, pageNo))
		}
		block.Pin()
		memoPush(block, latch, m)
		return block, nil
	}

	page, err := kp.load(spaceID, pageNo)
	if err != nil {
		return nil, errors.Annotatef(err, "buffer_pool: loading page %d:%d", spaceID, pageNo)
	}
	block = btree.NewBlock(page)

	kp.mu.Lock()
	kp.blocks[key] = block
	kp.mu.Unlock()
	kp.cache.SetOld(spaceID, pageNo, placeholderBlock(spaceID, pageNo))

	block.Pin()
	memoPush(block, latch, m)
	return block, nil
}

func (kp *KernelPool) OptimisticGet(block *btree.Block, expectedClock uint64, latch btree.LatchMode, m *mtr.Mtr) bool {
	page := block.Page()
	key := kp.cache.generateKey(page.SpaceID, page.PageNo)
	kp.mu.Lock()
	tracked := kp.blocks[key]
	kp.mu.Unlock()
	if tracked != block || block.ModifyClock() != expectedClock {
		return false
	}
	block.Pin()
	memoPush(block, latch, m)
	return true
}

func (kp *KernelPool) ReleaseLeaf(block *btree.Block, latch btree.LatchMode, m *mtr.Mtr) {
	if m != nil {
		m.ReleaseEarly(block)
	}
	block.Unpin()
}

// AdjustOldRatio forwards to the backing cache (buf_LRU_old_ratio_update).
// The pool never retunes itself; the ratio changes only when a caller
// invokes this.
func (kp *KernelPool) AdjustOldRatio(oldPercent float64) { kp.cache.AdjustOldRatio(oldPercent) }

func (kp *KernelPool) HitRate() float64 { return kp.cache.HitRate() }

func (kp *KernelPool) Resident() uint32 { return kp.cache.Len() }

func memoPush(block *btree.Block, latch btree.LatchMode, m *mtr.Mtr) {
	if m == nil {
		return
	}
	kind := mtr.LatchShared
	if latch == btree.ModifyLeaf || latch == btree.ModifyPrev {
		kind = mtr.LatchExclusive
	}
	m.MemoPush(block, kind, mtr.LevelPage)
}

// placeholderBlock feeds OptimizedLRUCache's generic residency tracking;
// the frame itself carries no payload because the parsed page lives in
// KernelPool.blocks, keyed by the same fold.
func placeholderBlock(spaceID, pageNo uint32) *BufferBlock {
	frame := make([]byte, 0)
	return NewBufferBlock(&frame, spaceID, pageNo)
}
