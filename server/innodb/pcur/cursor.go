// Package pcur implements the persistent cursor (C4): a B-tree cursor that
// survives mini-transaction commit via a stored order-prefix plus a
// modify-clock certificate, falling back to a full re-search only when the
// certificate fails.
package pcur

import (
	"github.com/go-innodb/storedb/server/innodb/btree"
	"github.com/go-innodb/storedb/server/innodb/mtr"
	"github.com/juju/errors"
)

// PosState is the cursor's lifecycle state.
type PosState uint8

const (
	NotPositioned PosState = iota
	IsPositioned
	WasPositioned
)

// RelPos records where the cursor sat relative to its stored anchor.
type RelPos uint8

const (
	RelOn RelPos = iota
	RelBefore
	RelAfter
	RelBeforeFirstInTree
	RelAfterLastInTree
)

// Searcher is what a persistent cursor needs from the B-tree layer: the
// buffer-pool external interface (btree.Pool) plus the tree-level search
// and edge-lookup operations C2 provides. *btree.Tree satisfies this.
type Searcher interface {
	btree.Pool
	Search(tuple *btree.DTuple, mode btree.SearchMode, latch btree.LatchMode, m *mtr.Mtr) (*btree.Cursor, error)
	LeftmostLeafNo() uint32
	RightmostLeafNo() uint32
}

// Cursor is the persistent cursor tuple of spec §3: pos_state, latch_mode,
// rel_pos, old_stored + the stored anchor buffer, block_when_stored +
// modify_clock, the live B-tree cursor, and the search mode to preserve
// across a pessimistic restore.
type Cursor struct {
	posState  PosState
	latchMode btree.LatchMode
	relPos    RelPos

	oldStored  bool
	oldRecBuf  []byte
	oldNFields int

	// anchorRec/anchorPos are the in-process equivalent of "the stored
	// record pointer at its captured offset": valid to dereference only
	// while blockWhenStored's modify-clock still equals the captured one.
	anchorRec *btree.Record
	anchorPos int

	blockWhenStored *btree.Block
	modifyClock     uint64

	btrCur     *btree.Cursor
	searchMode btree.SearchMode

	index    btree.Index
	searcher Searcher
	spaceID  uint32
}

func (c *Cursor) mustBePositioned() {
	if c.posState != IsPositioned {
		panic("pcur: operation requires IS_POSITIONED")
	}
}

// PosState exposes the lifecycle state for callers/tests asserting the
// documented transitions.
func (c *Cursor) PosState() PosState { return c.posState }
func (c *Cursor) RelPos() RelPos     { return c.relPos }
func (c *Cursor) Rec() *btree.Record { return c.btrCur.Rec() }
func (c *Cursor) Block() *btree.Block { return c.btrCur.Block }

// Open positions a fresh cursor before/on/after the first record
// satisfying searchMode, per spec §4.2's open(index, tuple, search_mode,
// latch_mode, mtr).
func Open(searcher Searcher, index btree.Index, tuple *btree.DTuple, searchMode btree.SearchMode, latchMode btree.LatchMode, m *mtr.Mtr, spaceID uint32) (*Cursor, error) {
	btrCur, err := searcher.Search(tuple, searchMode, latchMode, m)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Cursor{
		posState:   IsPositioned,
		latchMode:  latchMode,
		searchMode: searchMode,
		btrCur:     btrCur,
		index:      index,
		searcher:   searcher,
		spaceID:    spaceID,
	}, nil
}

// OpenOnUserRec mirrors btr_pcur_open_on_user_rec_func. The original never
// implements the L/LE case (ut_error); kept here as a deliberate panic
// rather than silently falling back to the fully general Open/Tree.Search,
// which does support all four modes and is what restore_position's
// pessimistic branch actually uses.
func OpenOnUserRec(searcher Searcher, index btree.Index, tuple *btree.DTuple, mode btree.SearchMode, latchMode btree.LatchMode, m *mtr.Mtr, spaceID uint32) (*Cursor, error) {
	if mode == btree.CurL || mode == btree.CurLE {
		panic("pcur: OpenOnUserRec does not implement PAGE_CUR_L/PAGE_CUR_LE")
	}
	return Open(searcher, index, tuple, mode, latchMode, m, spaceID)
}

// StorePosition snapshots the current position for use after the owning
// MTR commits. Precondition: IS_POSITIONED, holding at least a shared
// latch on the current leaf (spec §4.2).
func (c *Cursor) StorePosition(m *mtr.Mtr) {
	c.mustBePositioned()
	block := c.btrCur.Block
	if !m.Contains(block, mtr.LatchShared) {
		panic("pcur: store_position requires a latch on the current leaf in the mtr memo")
	}

	page := block.Page()
	rec := c.btrCur.Rec()

	if page.NUserRecs() == 0 {
		// Legal only for the sole page of an empty tree.
		if rec.Kind == btree.RecInfimum {
			c.relPos = RelBeforeFirstInTree
		} else {
			c.relPos = RelAfterLastInTree
		}
		c.oldStored = true
		c.oldRecBuf = nil
		c.anchorRec = nil
		c.blockWhenStored = block
		return
	}

	var anchorPos int
	switch rec.Kind {
	case btree.RecSupremum:
		anchorPos = c.btrCur.PageCur.Pos() - 1
		c.relPos = RelAfter
	case btree.RecInfimum:
		anchorPos = c.btrCur.PageCur.Pos() + 1
		c.relPos = RelBefore
	default:
		anchorPos = c.btrCur.PageCur.Pos()
		c.relPos = RelOn
	}
	anchor := page.At(anchorPos)
	prefix, nFields := c.index.CopyRecOrderPrefix(anchor)

	c.oldRecBuf = prefix
	c.oldNFields = nFields
	c.anchorRec = anchor
	c.anchorPos = anchorPos
	c.blockWhenStored = block
	c.modifyClock = block.ModifyClock()
	c.oldStored = true
}

// RestorePosition re-acquires a position equivalent to the stored one. See
// spec §4.2 for the three-branch algorithm this follows exactly.
func (c *Cursor) RestorePosition(latchMode btree.LatchMode, m *mtr.Mtr) bool {
	if !c.oldStored {
		panic("pcur: restore_position requires a stored position")
	}
	if c.posState != IsPositioned && c.posState != WasPositioned {
		panic("pcur: restore_position requires pos_state IS_POSITIONED or WAS_POSITIONED")
	}

	if c.relPos == RelBeforeFirstInTree || c.relPos == RelAfterLastInTree {
		var pageNo uint32
		if c.relPos == RelBeforeFirstInTree {
			pageNo = c.searcher.LeftmostLeafNo()
		} else {
			pageNo = c.searcher.RightmostLeafNo()
		}
		block, err := c.searcher.Get(c.spaceID, pageNo, latchMode, m)
		if err != nil {
			panic(errors.Annotate(err, "pcur: re-opening at tree edge").Error())
		}
		page := block.Page()
		pos := 0
		if c.relPos == RelAfterLastInTree {
			pos = page.Len() - 1
		}
		c.btrCur = &btree.Cursor{Block: block, PageCur: btree.NewPageCursor(page, pos)}
		c.blockWhenStored = block
		c.latchMode = latchMode
		c.posState = IsPositioned
		return false
	}

	if latchMode == btree.SearchLeaf || latchMode == btree.ModifyLeaf {
		if c.searcher.OptimisticGet(c.blockWhenStored, c.modifyClock, latchMode, m) {
			page := c.blockWhenStored.Page()
			if c.anchorPos < 0 || c.anchorPos >= page.Len() || page.At(c.anchorPos) != c.anchorRec {
				panic("pcur: optimistic restore: modify-clock matched but anchor slot moved")
			}
			c.btrCur = &btree.Cursor{Block: c.blockWhenStored, PageCur: btree.NewPageCursor(page, c.anchorPos)}
			c.latchMode = latchMode
			c.posState = IsPositioned
			return c.relPos == RelOn
		}
	}

	return c.restorePessimistic(latchMode, m)
}

func (c *Cursor) restorePessimistic(latchMode btree.LatchMode, m *mtr.Mtr) bool {
	savedSearchMode := c.searchMode

	var mode btree.SearchMode
	switch c.relPos {
	case RelOn:
		mode = btree.CurLE
	case RelAfter:
		mode = btree.CurG
	default: // RelBefore
		mode = btree.CurL
	}

	tuple := c.index.BuildDataTuple(c.oldRecBuf, c.oldNFields)
	btrCur, err := c.searcher.Search(tuple, mode, latchMode, m)
	if err != nil {
		panic(errors.Annotate(err, "pcur: pessimistic restore search").Error())
	}
	c.btrCur = btrCur
	c.searchMode = savedSearchMode
	c.latchMode = latchMode
	c.posState = IsPositioned

	if c.relPos == RelOn && btrCur.Rec().IsUser() && c.index.CmpDtupleRec(tuple, btrCur.Rec()) == 0 {
		c.blockWhenStored = btrCur.Block
		c.modifyClock = btrCur.Block.ModifyClock()
		c.anchorRec = btrCur.Rec()
		c.anchorPos = btrCur.PageCur.Pos()
		c.oldStored = true
		return true
	}

	c.StorePosition(m)
	return false
}

// MoveToNextUserRec advances past the current record to the next user
// record, returning false if none remains before the supremum.
func (c *Cursor) MoveToNextUserRec(m *mtr.Mtr) bool {
	c.mustBePositioned()
	for c.btrCur.PageCur.Next() {
		switch c.btrCur.Rec().Kind {
		case btree.RecUser:
			return true
		case btree.RecSupremum:
			return false
		}
	}
	return false
}

// MoveToNextPage requires the cursor sit at a supremum with a next
// sibling; it latches the sibling, validates its prev pointer, releases
// the current leaf, and lands on the sibling's infimum (spec §4.2).
func (c *Cursor) MoveToNextPage(m *mtr.Mtr) error {
	c.mustBePositioned()
	if c.btrCur.Rec().Kind != btree.RecSupremum {
		panic("pcur: move_to_next_page requires the cursor at the supremum")
	}
	page := c.btrCur.Block.Page()
	if page.Next == btree.FilNull {
		panic("pcur: move_to_next_page requires a next sibling")
	}

	nextBlock, err := c.searcher.Get(c.spaceID, page.Next, c.latchMode, m)
	if err != nil {
		return errors.Trace(err)
	}
	nextPage := nextBlock.Page()
	if nextPage.Prev != page.PageNo {
		panic("pcur: corruption: next leaf's prev pointer does not match the current block")
	}

	c.searcher.ReleaseLeaf(c.btrCur.Block, c.latchMode, m)
	c.btrCur = &btree.Cursor{Block: nextBlock, PageCur: btree.NewPageCursor(nextPage, 0)}
	return nil
}

// MoveBackwardFromPage implements spec §4.2's move_backward_from_page:
// store, commit the current mtr, start a new one (newMtr), restore under
// the Prev latch mode (which also latches the left sibling), then either
// land on the sibling's last record or release it. newMtr lets the caller
// supply a Sink/release hookup consistent with the rest of the kernel.
func (c *Cursor) MoveBackwardFromPage(m *mtr.Mtr, newMtr func() *mtr.Mtr) *mtr.Mtr {
	c.mustBePositioned()
	if c.btrCur.Rec().Kind != btree.RecInfimum {
		panic("pcur: move_backward_from_page requires the cursor at the infimum")
	}
	if c.btrCur.Block.Page().Prev == btree.FilNull {
		panic("pcur: move_backward_from_page requires a left sibling")
	}

	originalLatch := c.latchMode
	c.StorePosition(m)
	m.Commit()

	switch c.latchMode {
	case btree.SearchLeaf:
		c.latchMode = btree.SearchPrev
	case btree.ModifyLeaf:
		c.latchMode = btree.ModifyPrev
	}

	m2 := newMtr()
	c.RestorePosition(c.latchMode, m2)

	if c.btrCur.Rec().Kind == btree.RecInfimum && c.btrCur.LeftBlock != nil {
		// The restored cursor still sits on an infimum: position to the
		// last user record of the left sibling via the tree-cursor's
		// left_block side-pointer instead of re-descending. The infimum
		// page itself was only needed to reach the sibling pointer, so
		// its latch is released here rather than left in m2's memo.
		left := c.btrCur.LeftBlock
		leftPage := left.Page()
		c.searcher.ReleaseLeaf(c.btrCur.Block, c.latchMode, m2)
		c.btrCur = &btree.Cursor{Block: left, PageCur: btree.NewPageCursor(leftPage, leftPage.Len()-2)}
	} else if c.btrCur.LeftBlock != nil {
		c.searcher.ReleaseLeaf(c.btrCur.LeftBlock, c.latchMode, m2)
	}

	c.latchMode = originalLatch
	c.posState = IsPositioned
	return m2
}

// ReleaseLeaf drops the cursor's current leaf latch ahead of mtr commit.
func (c *Cursor) ReleaseLeaf(m *mtr.Mtr) {
	c.searcher.ReleaseLeaf(c.btrCur.Block, c.latchMode, m)
}

// CopyStoredPosition deep-copies the stored position into dst, which gets
// an independent buffer; the source (c) keeps its own (original_source:
// btr_pcur_copy_stored_position).
func (c *Cursor) CopyStoredPosition(dst *Cursor) {
	dst.oldRecBuf = append([]byte(nil), c.oldRecBuf...)
	dst.oldNFields = c.oldNFields
	dst.relPos = c.relPos
	dst.oldStored = c.oldStored
	dst.blockWhenStored = c.blockWhenStored
	dst.modifyClock = c.modifyClock
	dst.anchorRec = c.anchorRec
	dst.anchorPos = c.anchorPos
	dst.index = c.index
	dst.searcher = c.searcher
	dst.spaceID = c.spaceID
	dst.posState = WasPositioned
}

// Close releases the cursor's in-memory state. The underlying leaf latch,
// if still held, is the caller's responsibility via ReleaseLeaf or mtr
// commit.
func (c *Cursor) Close() {
	c.posState = NotPositioned
	c.btrCur = nil
	c.oldStored = false
	c.oldRecBuf = nil
	c.anchorRec = nil
}

// DemoteToWasPositioned moves an IS_POSITIONED cursor to WAS_POSITIONED.
// The mtr layer does not track cursors, so the caller invokes this after
// committing the owning MTR.
func (c *Cursor) DemoteToWasPositioned() {
	if c.posState == IsPositioned {
		c.posState = WasPositioned
	}
}
