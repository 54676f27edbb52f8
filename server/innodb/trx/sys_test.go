package trx

import (
	"testing"

	"github.com/go-innodb/storedb/server/innodb/mtr"
	"github.com/stretchr/testify/require"
)

func freshMtr() *mtr.Mtr { return mtr.Start(nil, nil) }

// S5 — trx-id ceiling flush.
func TestGetNewTrxIDWriteMarginFlush(t *testing.T) {
	header := NewMemHeaderPage(256)
	sys := NewSys(header)

	var ids []uint64
	for i := 0; i < 257; i++ {
		ids = append(ids, sys.GetNewTrxID(freshMtr))
	}

	require.Equal(t, uint64(256), ids[0])
	require.Equal(t, uint64(512), ids[256])
	require.Equal(t, 2, header.Writes)
	require.Equal(t, uint64(768), header.ReadTrxIDStore())
	require.Equal(t, uint64(513), sys.MaxTrxID())
}

func TestGetNewTrxIDMonotonic(t *testing.T) {
	sys := NewSys(NewMemHeaderPage(0))
	a := sys.GetNewTrxID(freshMtr)
	b := sys.GetNewTrxID(freshMtr)
	require.Equal(t, a+1, b)
}

func TestIsActiveBoundaries(t *testing.T) {
	sys := NewSys(NewMemHeaderPage(100))
	sys.minTrxID = 10

	require.False(t, sys.IsActive(5)) // below min
	require.True(t, sys.IsActive(200)) // at/above ceiling: conservative true

	tr := &Trx{ID: 50, State: Active}
	sys.AddTrx(tr)
	require.True(t, sys.IsActive(50))

	tr.State = CommittedInMemory
	require.False(t, sys.IsActive(50))
}

func TestFindFreeRsegSkipsSystemSlot(t *testing.T) {
	header := NewMemHeaderPage(0)
	sys := NewSys(header)

	i := sys.FindFreeRseg()
	require.Equal(t, 1, i)

	for slot := 1; slot < NRsegs; slot++ {
		header.SetRsegSlot(slot, 0, uint32(slot), nil)
	}
	require.Equal(t, UndefinedRseg, sys.FindFreeRseg())
}

func TestAddTrxKeepsDescendingOrder(t *testing.T) {
	sys := NewSys(NewMemHeaderPage(0))
	sys.AddTrx(&Trx{ID: 5})
	sys.AddTrx(&Trx{ID: 10})
	sys.AddTrx(&Trx{ID: 7})

	require.Len(t, sys.trxList, 3)
	require.Equal(t, uint64(10), sys.trxList[0].ID)
	require.Equal(t, uint64(7), sys.trxList[1].ID)
	require.Equal(t, uint64(5), sys.trxList[2].ID)
}

func TestDictOpLockReentrancy(t *testing.T) {
	tr := &Trx{}
	require.True(t, tr.AcquireDictOpLock())
	require.False(t, tr.AcquireDictOpLock())
	require.Equal(t, int32(2), tr.DictOpLockMode())
	tr.ReleaseDictOpLock()
	require.Equal(t, int32(1), tr.DictOpLockMode())
}
