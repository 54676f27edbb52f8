package ha

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertLookupDelete(t *testing.T) {
	table := NewTable(2, 8, 64)

	a := Fold([]byte("row-a"))
	require.True(t, table.Insert(a, "data-a"))
	require.True(t, table.Insert(a, "data-a2")) // duplicate fold, distinct data

	got := table.Lookup(a)
	assert.ElementsMatch(t, []interface{}{"data-a", "data-a2"}, got)

	require.True(t, table.Delete(a, "data-a"))
	assert.Equal(t, []interface{}{"data-a2"}, table.Lookup(a))
	require.NoError(t, table.Validate())
}

func TestDeleteCompactsArenaWithoutBreakingOtherChains(t *testing.T) {
	table := NewTable(0, 4, 64)

	folds := make([]uint64, 0, 20)
	for i := 0; i < 20; i++ {
		f := Fold([]byte{byte(i)})
		folds = append(folds, f)
		require.True(t, table.Insert(f, i))
	}

	// Delete from the middle of the arena repeatedly; every surviving
	// entry must still be found afterwards.
	require.True(t, table.Delete(folds[3], 3))
	require.True(t, table.Delete(folds[10], 10))
	require.True(t, table.Delete(folds[0], 0))

	for i, f := range folds {
		if i == 3 || i == 10 || i == 0 {
			assert.Empty(t, table.Lookup(f))
			continue
		}
		assert.Equal(t, []interface{}{i}, table.Lookup(f))
	}
	require.NoError(t, table.Validate())
}

func TestInsertReportsArenaExhaustion(t *testing.T) {
	table := NewTable(0, 4, 2)
	require.True(t, table.Insert(Fold([]byte("x")), 1))
	require.True(t, table.Insert(Fold([]byte("y")), 2))
	require.False(t, table.Insert(Fold([]byte("z")), 3))
}

func TestUpdateIfFound(t *testing.T) {
	table := NewTable(1, 4, 16)
	f := Fold([]byte("k"))
	require.True(t, table.Insert(f, "v1"))
	require.True(t, table.UpdateIfFound(f, "v1", "v2"))
	assert.Equal(t, []interface{}{"v2"}, table.Lookup(f))
	require.False(t, table.UpdateIfFound(f, "v1", "v3"))
}
