package undo

import (
	"bytes"

	"github.com/go-innodb/storedb/logger"
	"github.com/go-innodb/storedb/server/innodb/btree"
	"github.com/go-innodb/storedb/server/innodb/mtr"
	"github.com/go-innodb/storedb/server/innodb/pcur"
	"github.com/go-innodb/storedb/server/innodb/trx"
	"github.com/juju/errors"
)

// State is the row-undo node's state (spec §4.5).
type State uint8

const (
	FetchNext State = iota
	Insert
	Modify
	PrevVers
)

// Outcome reports what one Step call did, so the caller-supplied
// trampoline (the original's que_thr_t re-entry) knows how to proceed.
type Outcome uint8

const (
	// OutcomeApplied means an undo record was found and reversed; the
	// caller should re-enqueue the node (spec step 6).
	OutcomeApplied Outcome = iota
	// OutcomeDone means FETCH_NEXT found the undo stack empty; control
	// returns to the parent query node.
	OutcomeDone
	// OutcomeMissingHistory means row_undo_search_clust_to_pcur found the
	// row already gone or superseded; the entry is dropped and iteration
	// continues (spec §7, MISSING_HISTORY).
	OutcomeMissingHistory
)

// Node is the row-undo node (C6): a small state machine that pops undo
// records for one transaction and reverses the logical row operation each
// one recorded, driven one Step at a time by an external trampoline.
type Node struct {
	state State

	trx      *trx.Trx
	log      Log
	searcher pcur.Searcher
	index    btree.Index
	spaceID  uint32

	pcur       *pcur.Cursor
	undoRec    *Rec
	rollPtr    RollPtr
	undoNo     uint64
	newRollPtr RollPtr
	ref        []byte
	row        []byte
	undoRow    []byte

	heap *Heap
}

func NewNode(t *trx.Trx, log Log, searcher pcur.Searcher, index btree.Index, spaceID uint32) *Node {
	return &Node{
		state:    FetchNext,
		trx:      t,
		log:      log,
		searcher: searcher,
		index:    index,
		spaceID:  spaceID,
		heap:     NewHeap(),
	}
}

func (n *Node) State() State { return n.state }

// Step runs one iteration of the state machine (spec §4.5's "One
// iteration"). newMtr starts a fresh mini-transaction each time one is
// needed — the node never holds latches across Step calls.
func (n *Node) Step(newMtr func() *mtr.Mtr) (Outcome, error) {
	switch n.state {
	case FetchNext:
		rec, ok := n.log.PopTopRecOfTrx(n.trx.ID, n.trx.RollLimit)
		if !ok {
			return OutcomeDone, nil
		}
		n.undoRec = rec
	case PrevVers:
		rec, err := n.log.GetUndoRecLow(n.newRollPtr)
		if err != nil {
			return OutcomeDone, errors.Trace(err)
		}
		n.undoRec = rec
	default:
		panic("undo: Step called while the node is mid-dispatch (state must be FETCH_NEXT or PREV_VERS)")
	}

	n.rollPtr = n.undoRec.RollPtr
	n.undoNo = UndoRecGetUndoNo(n.undoRec)
	n.ref = n.undoRec.Ref

	if RollPtrIsInsert(n.rollPtr) {
		n.state = Insert
	} else {
		n.state = Modify
	}

	acquiredHere := n.trx.AcquireDictOpLock()
	found, err := n.searchClustToPcur(newMtr)
	if acquiredHere {
		n.trx.ReleaseDictOpLock()
	}
	if err != nil {
		return OutcomeDone, errors.Trace(err)
	}

	var outcome Outcome
	if !found {
		logger.Warnf("undo: MISSING_HISTORY dropping undo_no=%d trx_id=%d", n.undoNo, n.trx.ID)
		outcome = OutcomeMissingHistory
		n.state = FetchNext
	} else {
		if err := n.applyUndo(newMtr); err != nil {
			return OutcomeDone, errors.Trace(err)
		}
		outcome = OutcomeApplied
		if n.state == Modify && n.undoRec.PrevVersionRollPtr != nil {
			n.newRollPtr = *n.undoRec.PrevVersionRollPtr
			n.state = PrevVers
		} else {
			n.state = FetchNext
		}
	}

	if n.pcur != nil {
		n.pcur.Close()
		n.pcur = nil
	}
	n.heap.Reset()
	return outcome, nil
}

// searchClustToPcur implements row_undo_search_clust_to_pcur (spec §4.5):
// open MODIFY_LEAF on the clustered index by the row-reference, and check
// the landing record's roll_ptr still matches this undo entry's. A
// mismatch (or no landing user record) means the version was already
// purged or superseded by a later rollback/purge actor.
func (n *Node) searchClustToPcur(newMtr func() *mtr.Mtr) (bool, error) {
	m := newMtr()
	cur, err := pcur.Open(n.searcher, n.index, &btree.DTuple{Key: n.ref}, btree.CurGE, btree.ModifyLeaf, m, n.spaceID)
	if err != nil {
		return false, errors.Trace(err)
	}
	n.pcur = cur

	rec := cur.Rec()
	if !rec.IsUser() || !bytes.Equal(rec.Key, n.ref) || rec.RollPtr != n.rollPtr.Pack() {
		// Log has no undo-log reservation to hand back, so nothing is
		// released ahead of the latch: the leaf latch is dropped here
		// and the mtr committed.
		cur.ReleaseLeaf(m)
		m.Commit()
		return false, nil
	}

	n.row = append([]byte(nil), rec.Payload...)
	if n.state == Modify {
		n.undoRow = append([]byte(nil), n.undoRec.Before...)
	}
	cur.StorePosition(m)
	m.Commit()
	return true, nil
}

// applyUndo re-latches the clustered row under MODIFY_LEAF and dispatches
// to row_undo_ins (delete the inserted row) or row_undo_mod (restore the
// before-image).
func (n *Node) applyUndo(newMtr func() *mtr.Mtr) error {
	m := newMtr()
	ok := n.pcur.RestorePosition(btree.ModifyLeaf, m)
	if !ok {
		m.Commit()
		return errors.New("undo: row vanished between search_clust_to_pcur and apply")
	}

	switch n.state {
	case Insert:
		page := n.pcur.Block().Page()
		idx := page.IndexOf(n.pcur.Rec())
		page.DeleteAt(idx)
	case Modify:
		n.pcur.Rec().Payload = append([]byte(nil), n.undoRow...)
	}

	m.Commit()
	return nil
}
