package pcur

import (
	"testing"

	"github.com/go-innodb/storedb/server/innodb/btree"
	"github.com/go-innodb/storedb/server/innodb/mtr"
	"github.com/stretchr/testify/require"
)

func buildTree(t *testing.T, keys ...byte) *btree.Tree {
	t.Helper()
	tree := btree.NewTree(btree.LexIndex{}, 0)
	for _, k := range keys {
		tree.InsertUserRec(&btree.Record{Kind: btree.RecUser, Key: []byte{k}})
	}
	return tree
}

func openOnKey(t *testing.T, tree *btree.Tree, key byte, m *mtr.Mtr) *Cursor {
	t.Helper()
	cur, err := Open(tree, btree.LexIndex{}, &btree.DTuple{Key: []byte{key}}, btree.CurGE, btree.SearchLeaf, m, 0)
	require.NoError(t, err)
	return cur
}

// S1 — optimistic restore hit.
func TestOptimisticRestoreHit(t *testing.T) {
	tree := buildTree(t, 1, 2, 3)
	m1 := mtr.Start(nil, nil)
	cur := openOnKey(t, tree, 2, m1)
	require.Equal(t, []byte{2}, cur.Rec().Key)

	cur.StorePosition(m1)
	m1.Commit()
	cur.DemoteToWasPositioned()

	m2 := mtr.Start(nil, nil)
	ok := cur.RestorePosition(btree.SearchLeaf, m2)
	require.True(t, ok)
	require.Equal(t, []byte{2}, cur.Rec().Key)
	require.Equal(t, RelOn, cur.RelPos())
}

// S2 — optimistic miss falls back to pessimistic LE.
func TestOptimisticMissFallsBackToPessimistic(t *testing.T) {
	tree := buildTree(t, 1, 2, 3)
	m1 := mtr.Start(nil, nil)
	cur := openOnKey(t, tree, 2, m1)
	cur.StorePosition(m1)
	m1.Commit()
	cur.DemoteToWasPositioned()

	// Bumps the leaf's modify-clock between MTRs.
	tree.InsertUserRec(&btree.Record{Kind: btree.RecUser, Key: []byte{2, 0x80}}) // "2.5"-ish ordinal between 2 and 3

	m2 := mtr.Start(nil, nil)
	ok := cur.RestorePosition(btree.SearchLeaf, m2)
	require.True(t, ok)
	require.Equal(t, []byte{2}, cur.Rec().Key)
}

// S3 — stored record deleted; restore reports false and lands on the
// predecessor per mode LE.
func TestRestoreRecordVanished(t *testing.T) {
	tree := buildTree(t, 1, 2, 3)
	m1 := mtr.Start(nil, nil)
	cur := openOnKey(t, tree, 2, m1)
	cur.StorePosition(m1)
	m1.Commit()
	cur.DemoteToWasPositioned()

	leaf := tree.PageByNo(tree.LeftmostLeafNo())
	for i := 0; i < leaf.Len(); i++ {
		if r := leaf.At(i); r.Kind == btree.RecUser && r.Key[0] == 2 {
			leaf.DeleteAt(i)
			break
		}
	}

	m2 := mtr.Start(nil, nil)
	ok := cur.RestorePosition(btree.SearchLeaf, m2)
	require.False(t, ok)
	require.Equal(t, []byte{1}, cur.Rec().Key)
	require.Equal(t, RelOn, cur.RelPos())
}

// S6 — backward page traversal lands on the left leaf's last record and
// holds exactly one latch (on the left leaf, none on the right).
func TestMoveBackwardFromPage(t *testing.T) {
	tree := buildTree(t, 1, 2, 3)
	leafB := tree.AppendLeaf()
	tree.InsertUserRec(&btree.Record{Kind: btree.RecUser, Key: []byte{4}})
	tree.InsertUserRec(&btree.Record{Kind: btree.RecUser, Key: []byte{5}})
	tree.InsertUserRec(&btree.Record{Kind: btree.RecUser, Key: []byte{6}})
	require.Equal(t, leafB.PageNo, tree.RightmostLeafNo())

	m1 := mtr.Start(nil, nil)
	cur, err := Open(tree, btree.LexIndex{}, &btree.DTuple{Key: []byte{4}}, btree.CurGE, btree.SearchLeaf, m1, 0)
	require.NoError(t, err)
	require.Equal(t, []byte{4}, cur.Rec().Key)
	cur.btrCur.PageCur = btree.NewPageCursor(leafB, 0) // reposition onto the infimum for the test

	m2 := cur.MoveBackwardFromPage(m1, func() *mtr.Mtr { return mtr.Start(nil, nil) })

	require.Equal(t, []byte{3}, cur.Rec().Key)
	require.True(t, m2.Active())
	require.Equal(t, 1, m2.MemoLen())
	require.True(t, m2.Contains(cur.btrCur.Block, mtr.LatchShared))
	require.False(t, m2.Contains(tree.BlockByNo(leafB.PageNo), mtr.LatchShared))
}
