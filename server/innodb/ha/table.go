package ha

import (
	"sync"

	"github.com/go-innodb/storedb/util"
)

// Table is a hash index partitioned into M = 2^k stripes, each guarded by
// its own mutex (spec §4.3). Stripe selection uses the low k bits of the
// fold, the same fold the teacher's buffer pool already derives via
// util.HashCode (xxhash-backed), so both call sites share one folding
// function.
type Table struct {
	mu      sync.Mutex // never locked; each stripe is guarded by its own entry in locks
	locks   []sync.Mutex
	stripes []*stripe
	mask    uint64
}

// NewTable creates a table with 2^k stripes, each with nCellsPerStripe
// hash cells and room for capacityPerStripe nodes.
func NewTable(k uint, nCellsPerStripe, capacityPerStripe int) *Table {
	m := 1 << k
	t := &Table{
		locks:   make([]sync.Mutex, m),
		stripes: make([]*stripe, m),
		mask:    uint64(m - 1),
	}
	for i := range t.stripes {
		t.stripes[i] = newStripe(nCellsPerStripe, capacityPerStripe)
	}
	return t
}

// Fold derives the hash key for a raw byte key, shared with the buffer
// pool's page-id cache key folding (SPEC_FULL.md §3).
func Fold(key []byte) uint64 { return util.HashCode(key) }

func (t *Table) index(fold uint64) int { return int(fold & t.mask) }

// Insert adds fold->data. Returns false if the owning stripe's arena is
// exhausted; the caller tolerates rejection (adaptive-hash semantics).
func (t *Table) Insert(fold uint64, data interface{}) bool {
	i := t.index(fold)
	t.locks[i].Lock()
	defer t.locks[i].Unlock()
	return t.stripes[i].insert(fold, data)
}

func (t *Table) Delete(fold uint64, data interface{}) bool {
	i := t.index(fold)
	t.locks[i].Lock()
	defer t.locks[i].Unlock()
	return t.stripes[i].delete(fold, data)
}

func (t *Table) Lookup(fold uint64) []interface{} {
	i := t.index(fold)
	t.locks[i].Lock()
	defer t.locks[i].Unlock()
	return t.stripes[i].lookup(fold)
}

func (t *Table) UpdateIfFound(fold uint64, oldData, newData interface{}) bool {
	i := t.index(fold)
	t.locks[i].Lock()
	defer t.locks[i].Unlock()
	return t.stripes[i].updateIfFound(fold, oldData, newData)
}

// Validate checks every stripe's internal consistency (ha_validate).
func (t *Table) Validate() error {
	for i, s := range t.stripes {
		t.locks[i].Lock()
		err := s.validate()
		t.locks[i].Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}
