package undo

import (
	"testing"

	"github.com/go-innodb/storedb/server/innodb/btree"
	"github.com/go-innodb/storedb/server/innodb/mtr"
	"github.com/go-innodb/storedb/server/innodb/trx"
	"github.com/stretchr/testify/require"
)

func freshMtr() *mtr.Mtr { return mtr.Start(nil, nil) }

// S4 — undo of insert.
func TestStepUndoesInsert(t *testing.T) {
	tree := btree.NewTree(btree.LexIndex{}, 0)
	rp := RollPtr{IsInsert: true, RsegID: 1, PageNo: 10, Offset: 5}
	tree.InsertUserRec(&btree.Record{Kind: btree.RecUser, Key: []byte{7}, RollPtr: rp.Pack()})

	log := NewMemLog()
	log.Push(1, &Rec{UndoNo: 1, RollPtr: rp, Ref: []byte{7}})

	tr := &trx.Trx{ID: 1, RollLimit: 0}
	node := NewNode(tr, log, tree, btree.LexIndex{}, 0)

	outcome, err := node.Step(freshMtr)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)
	require.Equal(t, 0, log.StackLen(1))

	leaf := tree.PageByNo(tree.LeftmostLeafNo())
	require.Equal(t, 0, leaf.NUserRecs())

	outcome, err = node.Step(freshMtr)
	require.NoError(t, err)
	require.Equal(t, OutcomeDone, outcome)
}

func TestStepUndoesModify(t *testing.T) {
	tree := btree.NewTree(btree.LexIndex{}, 0)
	rp := RollPtr{IsInsert: false, RsegID: 1, PageNo: 20, Offset: 1}
	tree.InsertUserRec(&btree.Record{Kind: btree.RecUser, Key: []byte{3}, Payload: []byte("new-value"), RollPtr: rp.Pack()})

	log := NewMemLog()
	log.Push(2, &Rec{UndoNo: 1, RollPtr: rp, Ref: []byte{3}, Before: []byte("old-value")})

	tr := &trx.Trx{ID: 2}
	node := NewNode(tr, log, tree, btree.LexIndex{}, 0)

	outcome, err := node.Step(freshMtr)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)

	leaf := tree.PageByNo(tree.LeftmostLeafNo())
	var rec *btree.Record
	for i := 0; i < leaf.Len(); i++ {
		if r := leaf.At(i); r.Kind == btree.RecUser {
			rec = r
		}
	}
	require.NotNil(t, rec)
	require.Equal(t, []byte("old-value"), rec.Payload)
}

// Landing roll_ptr mismatch: the version was already purged/superseded.
func TestStepMissingHistoryDropsEntry(t *testing.T) {
	tree := btree.NewTree(btree.LexIndex{}, 0)
	currentRp := RollPtr{IsInsert: false, PageNo: 99}
	tree.InsertUserRec(&btree.Record{Kind: btree.RecUser, Key: []byte{9}, RollPtr: currentRp.Pack()})

	log := NewMemLog()
	staleRp := RollPtr{IsInsert: false, PageNo: 1}
	log.Push(3, &Rec{UndoNo: 1, RollPtr: staleRp, Ref: []byte{9}})

	tr := &trx.Trx{ID: 3}
	node := NewNode(tr, log, tree, btree.LexIndex{}, 0)

	outcome, err := node.Step(freshMtr)
	require.NoError(t, err)
	require.Equal(t, OutcomeMissingHistory, outcome)

	leaf := tree.PageByNo(tree.LeftmostLeafNo())
	require.Equal(t, 1, leaf.NUserRecs())
}

func TestSpillLogRoundTrip(t *testing.T) {
	prev := RollPtr{IsInsert: true, PageNo: 5}
	recs := []*Rec{
		{UndoNo: 1, RollPtr: RollPtr{PageNo: 1}, Ref: []byte("ref1"), Before: []byte("before1")},
		{UndoNo: 2, RollPtr: RollPtr{PageNo: 2}, Ref: []byte("ref2"), PrevVersionRollPtr: &prev},
	}

	var written []byte
	spill := &SpillLog{Write: func(b []byte) error { written = b; return nil }}
	require.NoError(t, spill.Persist(recs))
	require.NotEmpty(t, written)

	restored, err := spill.Restore(written)
	require.NoError(t, err)
	require.Len(t, restored, 2)
	require.Equal(t, recs[0].UndoNo, restored[0].UndoNo)
	require.Equal(t, recs[0].Ref, restored[0].Ref)
	require.Equal(t, recs[1].PrevVersionRollPtr.PageNo, restored[1].PrevVersionRollPtr.PageNo)
}
