// Package btree implements the page-cursor (C1) and B-tree cursor (C2)
// layer the persistent cursor is built on. The record comparator and the
// file-space allocator are external collaborators (spec §6); this package
// only depends on the narrow Index and Pool interfaces they must satisfy.
package btree

// LatchMode mirrors the InnoDB btr_pcur latch modes the persistent cursor
// requests from the buffer pool. SearchLeaf/ModifyLeaf are used for plain
// descents; SearchPrev/ModifyPrev additionally latch the left sibling
// during the descent, needed by move_backward_from_page.
type LatchMode uint8

const (
	NoLatches LatchMode = iota
	SearchLeaf
	ModifyLeaf
	SearchPrev
	ModifyPrev
)

func (m LatchMode) String() string {
	switch m {
	case SearchLeaf:
		return "SEARCH_LEAF"
	case ModifyLeaf:
		return "MODIFY_LEAF"
	case SearchPrev:
		return "SEARCH_PREV"
	case ModifyPrev:
		return "MODIFY_PREV"
	default:
		return "NO_LATCHES"
	}
}

// SearchMode is the page_cur_mode_t of the original: which relation the
// landing record must satisfy relative to the search tuple.
type SearchMode uint8

const (
	CurG SearchMode = iota
	CurGE
	CurL
	CurLE
)

// RecKind distinguishes the two synthetic sentinels from ordinary rows.
type RecKind uint8

const (
	RecUser RecKind = iota
	RecInfimum
	RecSupremum
)

// Record is an opaque row plus the header pair MVCC needs. Ordering is
// delegated entirely to an Index; the core never compares Key bytes itself
// except through that interface, matching rem0cmp being external (spec §1).
type Record struct {
	Kind    RecKind
	Key     []byte
	Payload []byte
	TrxID   uint64
	RollPtr uint64
}

func (r *Record) IsUser() bool { return r.Kind == RecUser }

// DTuple is a search tuple built from a record's order-prefix, per
// Index.BuildDataTuple.
type DTuple struct {
	Key []byte
}

// Index is the record-layout/comparator collaborator (spec §6). It never
// touches pages or latches; it only knows how to derive and compare keys.
type Index interface {
	// CopyRecOrderPrefix returns an owned copy of rec's order-prefix (the
	// key fields sufficient to re-find the record), along with the number
	// of fields it covers.
	CopyRecOrderPrefix(rec *Record) (prefix []byte, nFields int)
	BuildDataTuple(prefix []byte, nFields int) *DTuple
	// CmpDtupleRec returns -1/0/+1 comparing tuple to rec.
	CmpDtupleRec(tuple *DTuple, rec *Record) int
	// CmpRecRec is debug-only, used to assert an optimistic restore landed
	// on the exact stored record.
	CmpRecRec(a, b *Record) int
}
