package btree

import (
	"testing"

	"github.com/go-innodb/storedb/server/innodb/mtr"
	"github.com/stretchr/testify/require"
)

func buildTree(t *testing.T, keys ...byte) *Tree {
	t.Helper()
	tree := NewTree(LexIndex{}, 0)
	for _, k := range keys {
		tree.InsertUserRec(&Record{Kind: RecUser, Key: []byte{k}})
	}
	return tree
}

func TestSearchGELandsOnExactMatch(t *testing.T) {
	tree := buildTree(t, 1, 2, 3)
	m := mtr.Start(nil, nil)
	cur, err := tree.Search(&DTuple{Key: []byte{2}}, CurGE, SearchLeaf, m)
	require.NoError(t, err)
	require.True(t, cur.Rec().IsUser())
	require.Equal(t, []byte{2}, cur.Rec().Key)
}

func TestSearchLEFallsBackToPrevious(t *testing.T) {
	tree := buildTree(t, 1, 2, 3)
	m := mtr.Start(nil, nil)
	cur, err := tree.Search(&DTuple{Key: []byte{2}}, CurLE, SearchLeaf, m)
	require.NoError(t, err)
	require.Equal(t, []byte{2}, cur.Rec().Key)

	cur2, err := tree.Search(&DTuple{Key: []byte{5}}, CurLE, SearchLeaf, m)
	require.NoError(t, err)
	require.Equal(t, []byte{3}, cur2.Rec().Key)
}

func TestSearchCrossesLeafBoundary(t *testing.T) {
	tree := buildTree(t, 1, 2, 3)
	leaf2 := tree.AppendLeaf()
	tree.InsertUserRec(&Record{Kind: RecUser, Key: []byte{4}})
	tree.InsertUserRec(&Record{Kind: RecUser, Key: []byte{5}})

	m := mtr.Start(nil, nil)
	cur, err := tree.Search(&DTuple{Key: []byte{4}}, CurGE, SearchLeaf, m)
	require.NoError(t, err)
	require.Equal(t, leaf2.PageNo, cur.Block.Page().PageNo)
	require.Equal(t, []byte{4}, cur.Rec().Key)
}

func TestOptimisticGetDetectsStructuralChange(t *testing.T) {
	tree := buildTree(t, 1, 2, 3)
	block := tree.BlockByNo(tree.LeftmostLeafNo())
	clock := block.ModifyClock()

	ok := tree.OptimisticGet(block, clock, SearchLeaf, nil)
	require.True(t, ok)

	tree.InsertUserRec(&Record{Kind: RecUser, Key: []byte{99}})
	ok = tree.OptimisticGet(block, clock, SearchLeaf, nil)
	require.False(t, ok)
}
