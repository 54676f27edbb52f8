package trx

import "github.com/go-innodb/storedb/server/innodb/mtr"

// MemHeaderPage is an in-memory stand-in for the trx-sys header page. The
// real header lives at a fixed (space, page_no) under FSP (external to the
// core, spec §1); MemHeaderPage lets Sys be exercised without a real
// buffer pool wired in, the same role Tree plays for btree.Pool.
type MemHeaderPage struct {
	ceiling uint64
	slots   [NRsegs]struct{ spaceID, pageNo uint32 }
	Writes  int // number of WriteTrxIDStore calls observed, for tests
}

// NewMemHeaderPage creates a header with the given initial ceiling and
// slot 0 reserved for the system rollback segment, as required by
// spec §8's boundary behavior ("rseg slot 0 ... must never be reported as
// free").
func NewMemHeaderPage(initialCeiling uint64) *MemHeaderPage {
	h := &MemHeaderPage{ceiling: initialCeiling}
	for i := range h.slots {
		h.slots[i].pageNo = FilNull
	}
	h.slots[0] = struct{ spaceID, pageNo uint32 }{SysTablespace, 1}
	return h
}

func (h *MemHeaderPage) ReadTrxIDStore() uint64 { return h.ceiling }

func (h *MemHeaderPage) WriteTrxIDStore(ceiling uint64, m *mtr.Mtr) {
	h.ceiling = ceiling
	h.Writes++
}

func (h *MemHeaderPage) RsegSlot(i int) (uint32, uint32) {
	return h.slots[i].spaceID, h.slots[i].pageNo
}

func (h *MemHeaderPage) SetRsegSlot(i int, spaceID, pageNo uint32, m *mtr.Mtr) {
	h.slots[i] = struct{ spaceID, pageNo uint32 }{spaceID, pageNo}
}
