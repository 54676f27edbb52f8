package btree

import "sync"

// FilNull is the sentinel page number meaning "no such page".
const FilNull uint32 = 0xFFFFFFFF

// Page is a fixed-size leaf frame: an ordered slice of records bracketed by
// an infimum and a supremum sentinel, sibling page numbers, and a
// modify-clock bumped on any structural or record change. The record
// comparator that orders the slice lives outside this package (Index); a
// Page only stores whatever order an Index-driven insert placed things in.
type Page struct {
	mu sync.RWMutex

	SpaceID uint32
	PageNo  uint32
	Prev    uint32 // FilNull if none
	Next    uint32 // FilNull if none

	// recs always starts with the infimum and ends with the supremum; any
	// records in between are user records in index order.
	recs []*Record

	modifyClock uint64
}

// NewPage creates an empty leaf: infimum directly followed by supremum,
// satisfying the invariant that a leaf with zero user records is legal
// only for the sole page of an empty tree.
func NewPage(spaceID, pageNo uint32) *Page {
	return &Page{
		SpaceID: spaceID,
		PageNo:  pageNo,
		Prev:    FilNull,
		Next:    FilNull,
		recs:    []*Record{{Kind: RecInfimum}, {Kind: RecSupremum}},
	}
}

func (p *Page) ModifyClock() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.modifyClock
}

func (p *Page) bump() { p.modifyClock++ }

// NUserRecs reports the number of user (non-sentinel) records.
func (p *Page) NUserRecs() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.recs) - 2
}

func (p *Page) Infimum() *Record { return p.recs[0] }
func (p *Page) Supremum() *Record { return p.recs[len(p.recs)-1] }

// InsertSorted inserts rec at position i (an index obtained from a prior
// search), between the infimum/supremum sentinels, and bumps the
// modify-clock. Callers are responsible for picking i via an Index
// comparator; Page itself does not order records.
func (p *Page) InsertSorted(i int, rec *Record) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recs = append(p.recs, nil)
	copy(p.recs[i+1:], p.recs[i:])
	p.recs[i] = rec
	p.bump()
}

// DeleteAt removes the user record at position i and bumps the modify-clock.
func (p *Page) DeleteAt(i int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recs = append(p.recs[:i], p.recs[i+1:]...)
	p.bump()
}

// At returns the record at position i (0 == infimum, len-1 == supremum).
func (p *Page) At(i int) *Record {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.recs[i]
}

func (p *Page) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.recs)
}

// IndexOf returns the position of rec within the page by identity, or -1.
func (p *Page) IndexOf(rec *Record) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for i, r := range p.recs {
		if r == rec {
			return i
		}
	}
	return -1
}

// PageCursor addresses a single record slot within one page frame (C1) and
// moves to the next/previous record or sentinel.
type PageCursor struct {
	page *Page
	pos  int
}

func NewPageCursor(p *Page, pos int) *PageCursor {
	return &PageCursor{page: p, pos: pos}
}

func (c *PageCursor) Page() *Page   { return c.page }
func (c *PageCursor) Rec() *Record  { return c.page.At(c.pos) }
func (c *PageCursor) Pos() int      { return c.pos }

func (c *PageCursor) IsBeforeFirst() bool { return c.pos == 0 }
func (c *PageCursor) IsAfterLast() bool   { return c.pos == c.page.Len()-1 }

// Next advances to the next record (possibly the supremum). Reports false
// if the cursor was already on the supremum (no movement possible).
func (c *PageCursor) Next() bool {
	if c.IsAfterLast() {
		return false
	}
	c.pos++
	return true
}

// Prev retreats to the previous record (possibly the infimum). Reports
// false if the cursor was already on the infimum.
func (c *PageCursor) Prev() bool {
	if c.IsBeforeFirst() {
		return false
	}
	c.pos--
	return true
}

// MoveToFirstUserRec positions just past the infimum, on the first user
// record if any, else directly on the supremum.
func (c *PageCursor) MoveToFirstUserRec() {
	c.pos = 1
}

// MoveToLastUserRec positions on the last user record if any, else on the
// infimum.
func (c *PageCursor) MoveToLastUserRec() {
	c.pos = c.page.Len() - 2
}
