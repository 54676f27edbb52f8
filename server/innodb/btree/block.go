package btree

import (
	"sync"
	"sync/atomic"

	"github.com/go-innodb/storedb/server/innodb/mtr"
)

var blockIDSeq uint64

// Block is a buffered page frame: pinned count, current latch, the page's
// modify-clock as observed through this handle, and a "check at flush"
// flag. It satisfies mtr.Latchable so a mini-transaction can memo it.
type Block struct {
	id uintptr

	mu     sync.Mutex
	page   *Page
	pinned int32
	latch  mtr.LatchKind

	CheckAtFlush bool
}

func NewBlock(p *Page) *Block {
	return &Block{id: uintptr(atomic.AddUint64(&blockIDSeq, 1)), page: p}
}

func (b *Block) UnlatchToken() uintptr { return b.id }

func (b *Block) Page() *Page { return b.page }

// ModifyClock reads the underlying page's modify-clock. Named to match the
// buffer-pool external interface's get_modify_clock().
func (b *Block) ModifyClock() uint64 { return b.page.ModifyClock() }

func (b *Block) Pin() {
	b.mu.Lock()
	b.pinned++
	b.mu.Unlock()
}

func (b *Block) Unpin() {
	b.mu.Lock()
	if b.pinned > 0 {
		b.pinned--
	}
	b.mu.Unlock()
}

func (b *Block) PinCount() int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pinned
}

func (b *Block) setLatch(k mtr.LatchKind) {
	b.mu.Lock()
	b.latch = k
	b.mu.Unlock()
}

func (b *Block) Latch() mtr.LatchKind {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latch
}

// Pool is the buffer-pool external interface consumed by C4/C6/C7 (spec
// §6): fetch a block by location, attempt a non-blocking optimistic
// reacquisition keyed on a stale modify-clock, and release a latch ahead
// of the owning MTR's commit.
type Pool interface {
	Get(spaceID, pageNo uint32, latch LatchMode, m *mtr.Mtr) (*Block, error)
	// OptimisticGet succeeds iff block is still resident and its current
	// modify-clock equals expectedClock. Block latches are recorded, not
	// contended, so the implementations here (Tree, KernelPool) never fail
	// on latch contention.
	OptimisticGet(block *Block, expectedClock uint64, latch LatchMode, m *mtr.Mtr) bool
	ReleaseLeaf(block *Block, latch LatchMode, m *mtr.Mtr)
}

func latchKindFor(mode LatchMode) mtr.LatchKind {
	switch mode {
	case ModifyLeaf, ModifyPrev:
		return mtr.LatchExclusive
	default:
		return mtr.LatchShared
	}
}
