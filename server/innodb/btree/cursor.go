package btree

// Cursor is the B-tree cursor (C2): the block a search landed on, the
// page-cursor positioned within it, and — when the descent was made under
// SearchPrev/ModifyPrev — the previous leaf's block, latched alongside the
// target leaf. Persistent cursor's move_backward_from_page reads LeftBlock
// as its "left_block" side-pointer rather than re-descending.
type Cursor struct {
	Block     *Block
	PageCur   *PageCursor
	LeftBlock *Block
}

func (c *Cursor) Rec() *Record { return c.PageCur.Rec() }

// searchWithinPage walks a leaf's user records to find the landing slot
// for the given mode. G/GE scan left to right for the first record
// satisfying the relation; L/LE scan right to left for the first
// (rightmost) one. Falling off either end lands on the relevant sentinel.
func searchWithinPage(p *Page, tuple *DTuple, mode SearchMode, index Index) *PageCursor {
	n := p.Len()
	switch mode {
	case CurG, CurGE:
		for i := 1; i < n-1; i++ {
			c := index.CmpDtupleRec(tuple, p.At(i))
			if (mode == CurG && c < 0) || (mode == CurGE && c <= 0) {
				return NewPageCursor(p, i)
			}
		}
		return NewPageCursor(p, n-1) // supremum: nothing satisfies
	default: // CurL, CurLE
		for i := n - 2; i >= 1; i-- {
			c := index.CmpDtupleRec(tuple, p.At(i))
			if (mode == CurL && c > 0) || (mode == CurLE && c >= 0) {
				return NewPageCursor(p, i)
			}
		}
		return NewPageCursor(p, 0) // infimum: nothing satisfies
	}
}
