package buffer_pool

import (
	"testing"

	"github.com/go-innodb/storedb/server/innodb/btree"
	"github.com/stretchr/testify/require"
)

func newLoader(loads *int) Loader {
	return func(spaceID, pageNo uint32) (*btree.Page, error) {
		*loads++
		return btree.NewPage(spaceID, pageNo), nil
	}
}

func TestKernelPoolGetLoadsOnceThenHitsCache(t *testing.T) {
	var loads int
	pool := NewKernelPool(16, 0.7, 0.3, 0, newLoader(&loads))

	b1, err := pool.Get(0, 1, btree.SearchLeaf, nil)
	require.NoError(t, err)
	require.Equal(t, 1, loads)

	b2, err := pool.Get(0, 1, btree.SearchLeaf, nil)
	require.NoError(t, err)
	require.Equal(t, 1, loads, "second fetch should hit the cache, not reload")
	require.Same(t, b1, b2)
}

func TestKernelPoolEvictionTearsDownTrackedBlock(t *testing.T) {
	var loads int
	pool := NewKernelPool(2, 0.5, 0.5, 0, newLoader(&loads))

	for i := uint32(0); i < 3; i++ {
		_, err := pool.Get(0, i, btree.SearchLeaf, nil)
		require.NoError(t, err)
	}

	require.LessOrEqual(t, int(pool.Resident()), 2)
	_, tracked := pool.blocks[pool.cache.generateKey(0, 0)]
	require.False(t, tracked, "the evicted page's block should no longer be tracked")
}

func TestKernelPoolOptimisticGetDetectsStructuralChange(t *testing.T) {
	var loads int
	pool := NewKernelPool(16, 0.7, 0.3, 0, newLoader(&loads))

	block, err := pool.Get(0, 5, btree.SearchLeaf, nil)
	require.NoError(t, err)
	clock := block.ModifyClock()

	require.True(t, pool.OptimisticGet(block, clock, btree.SearchLeaf, nil))

	block.Page().InsertSorted(0, &btree.Record{Kind: btree.RecUser, Key: []byte{1}})
	require.False(t, pool.OptimisticGet(block, clock, btree.SearchLeaf, nil))
}

func TestKernelPoolAdjustOldRatioClamps(t *testing.T) {
	var loads int
	pool := NewKernelPool(16, 0.7, 0.3, 0, newLoader(&loads))

	pool.AdjustOldRatio(10)
	require.Equal(t, 0.95, pool.cache.OldRatio())

	pool.AdjustOldRatio(-1)
	require.Equal(t, 0.05, pool.cache.OldRatio())
}
