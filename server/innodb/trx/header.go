package trx

import "github.com/go-innodb/storedb/server/innodb/mtr"

// FilNull is the sentinel page number meaning "no such page", duplicated
// from btree rather than imported so trx has no dependency on the B-tree
// layer (it only ever writes a flat header page through an MTR).
const FilNull uint32 = 0xFFFFFFFF

// WriteMargin is TRX_SYS_TRX_ID_WRITE_MARGIN: the header's trx-id ceiling
// is flushed every time the pre-increment id is divisible by this.
const WriteMargin = 256

// NRsegs is the fixed number of rollback-segment slots in the header page.
const NRsegs = 256

// UndefinedRseg is returned by FindFreeRseg when every slot is occupied.
const UndefinedRseg = -1

// SysTablespace and TrxSysPageNo locate the header page (spec §4.6).
const (
	SysTablespace uint32 = 0
	TrxSysPageNo  uint32 = 5
)

// HeaderPage is the trx-sys header page collaborator (spec §6): an
// 8-byte trx-id ceiling followed by a file-segment header, followed by
// 256 8-byte (space_id, page_no) rollback-segment slots.
type HeaderPage interface {
	ReadTrxIDStore() uint64
	WriteTrxIDStore(ceiling uint64, m *mtr.Mtr)
	RsegSlot(i int) (spaceID, pageNo uint32)
	SetRsegSlot(i int, spaceID, pageNo uint32, m *mtr.Mtr)
}
