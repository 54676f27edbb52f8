package trx

import (
	"sort"
	"sync"

	"github.com/go-innodb/storedb/server/innodb/mtr"
)

// Sys is the transaction system: the trx-id counter, the active-trx list
// ordered by id descending, and the rollback-segment slot table, all
// protected by one kernel mutex (spec §3, §5). It is passed explicitly
// rather than kept as a process global, per spec §9's re-architecting
// note.
type Sys struct {
	mu sync.Mutex

	maxTrxID uint64
	minTrxID uint64

	trxList []*Trx // ordered by ID descending

	header HeaderPage
}

// NewSys recovers the trx-id ceiling from the header page; on a fresh
// header this is the initial ceiling the caller wrote there.
func NewSys(header HeaderPage) *Sys {
	ceiling := header.ReadTrxIDStore()
	return &Sys{maxTrxID: ceiling, minTrxID: ceiling, header: header}
}

// GetNewTrxID returns max_trx_id and post-increments it. Whenever the
// pre-increment value is divisible by WriteMargin, the new ceiling
// (id + WriteMargin) is flushed to the header page under a fresh MTR
// obtained from newMtr — rounding up by the margin guarantees that after
// a crash, the next assigned id is still greater than any previously
// handed out, without per-id I/O (spec §4.6).
func (s *Sys) GetNewTrxID(newMtr func() *mtr.Mtr) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.maxTrxID
	s.maxTrxID++

	if id%WriteMargin == 0 {
		ceiling := id + WriteMargin
		m := newMtr()
		s.header.WriteTrxIDStore(ceiling, m)
		m.Commit()
	}
	return id
}

// MaxTrxID reports the current (not-yet-assigned) ceiling, for tests and
// diagnostics.
func (s *Sys) MaxTrxID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxTrxID
}

// AddTrx inserts t into trx_list, keeping it ordered by id descending.
func (s *Sys) AddTrx(t *Trx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := sort.Search(len(s.trxList), func(i int) bool { return s.trxList[i].ID <= t.ID })
	s.trxList = append(s.trxList, nil)
	copy(s.trxList[i+1:], s.trxList[i:])
	s.trxList[i] = t
}

// RemoveTrx drops id from trx_list (commit-in-memory completion).
func (s *Sys) RemoveTrx(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.trxList {
		if t.ID == id {
			s.trxList = append(s.trxList[:i], s.trxList[i+1:]...)
			return
		}
	}
}

// IsActive returns false if id predates the oldest trx this process has
// ever seen; true (conservatively) if id is at or past the current
// ceiling — used only by corruption-tolerant diagnostics; otherwise it
// looks the trx up and reports whether it is ACTIVE or PREPARED.
func (s *Sys) IsActive(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < s.minTrxID {
		return false
	}
	if id >= s.maxTrxID {
		return true
	}
	for _, t := range s.trxList {
		if t.ID == id {
			return t.State == Active || t.State == Prepared
		}
	}
	return false
}

// FindFreeRseg scans the header's rseg slots under (conceptually) an
// x-latch and returns the first unused index, skipping slot 0 which is
// permanently reserved for the system rollback segment, or UndefinedRseg
// if every slot is occupied.
func (s *Sys) FindFreeRseg() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 1; i < NRsegs; i++ {
		_, pageNo := s.header.RsegSlot(i)
		if pageNo == FilNull {
			return i
		}
	}
	return UndefinedRseg
}

// AssignRseg claims a free slot for (spaceID, pageNo) and returns its
// index, or UndefinedRseg if none was free.
func (s *Sys) AssignRseg(spaceID, pageNo uint32, m *mtr.Mtr) int {
	i := s.FindFreeRseg()
	if i == UndefinedRseg {
		return UndefinedRseg
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.header.SetRsegSlot(i, spaceID, pageNo, m)
	return i
}
