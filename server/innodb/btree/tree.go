package btree

import (
	"bytes"
	"sync"

	"github.com/go-innodb/storedb/server/innodb/mtr"
	"github.com/juju/errors"
)

// Tree is a simplified in-memory leaf chain. The multi-level internal-page
// structure and the file-space allocator that would place real pages on
// disk are external collaborators out of scope for the core (spec §1);
// everything the persistent cursor actually touches is the doubly linked
// chain of leaves, which Tree models directly and also serves as its own
// Pool so the kernel can be exercised without a separate buffer pool.
type Tree struct {
	mu      sync.RWMutex
	index   Index
	spaceID uint32

	pages      map[uint32]*Page
	blocks     map[uint32]*Block
	nextPageNo uint32
	headPageNo uint32
}

func NewTree(index Index, spaceID uint32) *Tree {
	t := &Tree{
		index:   index,
		spaceID: spaceID,
		pages:   make(map[uint32]*Page),
		blocks:  make(map[uint32]*Block),
	}
	p := t.allocPage()
	t.headPageNo = p.PageNo
	return t
}

func (t *Tree) allocPage() *Page {
	no := t.nextPageNo
	t.nextPageNo++
	p := NewPage(t.spaceID, no)
	t.pages[no] = p
	t.blocks[no] = NewBlock(p)
	return p
}

// AppendLeaf links a fresh empty leaf onto the tail of the chain. Tree has
// no split logic (B-tree internals are external to the core); tests build
// multi-leaf trees explicitly with this plus InsertUserRec.
func (t *Tree) AppendLeaf() *Page {
	t.mu.Lock()
	defer t.mu.Unlock()
	tailNo := t.tailNoLocked()
	tail := t.pages[tailNo]
	next := t.allocPage()
	next.Prev = tail.PageNo
	tail.Next = next.PageNo
	return next
}

func (t *Tree) tailNoLocked() uint32 {
	no := t.headPageNo
	for t.pages[no].Next != FilNull {
		no = t.pages[no].Next
	}
	return no
}

func (t *Tree) LeftmostLeafNo() uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.headPageNo
}

func (t *Tree) RightmostLeafNo() uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tailNoLocked()
}

// InsertUserRec places rec in sorted order in whichever leaf its key
// belongs to, walking the chain left to right the same way Search does.
func (t *Tree) InsertUserRec(rec *Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tuple := &DTuple{Key: rec.Key}
	pageNo := t.headPageNo
	for {
		page := t.pages[pageNo]
		last := page.At(page.Len() - 2)
		if last.Kind == RecUser && t.index.CmpDtupleRec(tuple, last) > 0 && page.Next != FilNull {
			pageNo = page.Next
			continue
		}
		pos := 1
		for pos < page.Len()-1 {
			if t.index.CmpDtupleRec(tuple, page.At(pos)) <= 0 {
				break
			}
			pos++
		}
		page.InsertSorted(pos, rec)
		return
	}
}

func (t *Tree) PageByNo(pageNo uint32) *Page {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pages[pageNo]
}

func (t *Tree) BlockByNo(pageNo uint32) *Block {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.blocks[pageNo]
}

// Get implements Pool: it always succeeds if the page exists (the real
// buffer pool may block on I/O; this in-memory tree never needs to).
func (t *Tree) Get(spaceID, pageNo uint32, latch LatchMode, m *mtr.Mtr) (*Block, error) {
	t.mu.RLock()
	b, ok := t.blocks[pageNo]
	t.mu.RUnlock()
	if !ok {
		return nil, errors.NotFoundf("page %d", pageNo)
	}
	b.Pin()
	b.setLatch(latchKindFor(latch))
	if m != nil {
		m.MemoPush(b, latchKindFor(latch), mtr.LevelPage)
	}
	return b, nil
}

// OptimisticGet succeeds iff block's current modify-clock still equals
// expectedClock — the cheap certificate that nothing structural happened
// to the page since it was last observed.
func (t *Tree) OptimisticGet(block *Block, expectedClock uint64, latch LatchMode, m *mtr.Mtr) bool {
	if block.ModifyClock() != expectedClock {
		return false
	}
	block.Pin()
	block.setLatch(latchKindFor(latch))
	if m != nil {
		m.MemoPush(block, latchKindFor(latch), mtr.LevelPage)
	}
	return true
}

func (t *Tree) ReleaseLeaf(block *Block, latch LatchMode, m *mtr.Mtr) {
	if m != nil {
		m.ReleaseEarly(block)
	}
	block.Unpin()
}

// Search locates the leaf and in-page position satisfying mode for tuple,
// latching leaves along the way under latch and releasing any it passes
// over (unless latch requests the previous leaf stay pinned too).
func (t *Tree) Search(tuple *DTuple, mode SearchMode, latch LatchMode, m *mtr.Mtr) (*Cursor, error) {
	t.mu.RLock()
	pageNo := t.headPageNo
	t.mu.RUnlock()

	var leftBlock *Block
	for {
		block, err := t.Get(t.spaceID, pageNo, latch, m)
		if err != nil {
			return nil, errors.Trace(err)
		}
		page := block.Page()
		last := page.At(page.Len() - 2)
		if last.Kind == RecUser && t.index.CmpDtupleRec(tuple, last) > 0 && page.Next != FilNull {
			if latch == SearchPrev || latch == ModifyPrev {
				if leftBlock != nil {
					t.ReleaseLeaf(leftBlock, latch, m)
				}
				leftBlock = block
			} else {
				t.ReleaseLeaf(block, latch, m)
			}
			pageNo = page.Next
			continue
		}
		pc := searchWithinPage(page, tuple, mode, t.index)
		return &Cursor{Block: block, PageCur: pc, LeftBlock: leftBlock}, nil
	}
}

// LexIndex is a minimal Index that orders records by a plain byte-string
// key, with the order-prefix equal to the whole key. Real indexes derive a
// prefix from a multi-column row layout (external to the core); LexIndex
// is the stand-in used when no richer comparator is wired.
type LexIndex struct{}

func (LexIndex) CopyRecOrderPrefix(rec *Record) ([]byte, int) {
	out := make([]byte, len(rec.Key))
	copy(out, rec.Key)
	return out, 1
}

func (LexIndex) BuildDataTuple(prefix []byte, nFields int) *DTuple {
	return &DTuple{Key: prefix}
}

func (LexIndex) CmpDtupleRec(tuple *DTuple, rec *Record) int {
	return bytes.Compare(tuple.Key, rec.Key)
}

func (LexIndex) CmpRecRec(a, b *Record) int {
	return bytes.Compare(a.Key, b.Key)
}
