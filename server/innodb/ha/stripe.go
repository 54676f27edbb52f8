// Package ha implements the hash index with external chaining (spec
// §4.3): a fold -> data mapping partitioned into M = 2^k stripes, each
// with its own mutex and arena, used by the adaptive-hash lookup path.
package ha

import "github.com/juju/errors"

type node struct {
	fold uint64
	data interface{}
	next int32 // index into stripe.nodes; -1 terminates the chain
}

const noNext int32 = -1

// stripe is one mutex-and-arena partition: a fixed number of hash cells,
// each the head of a singly linked chain threaded through a flat arena
// slice, mirroring hash0hash.h's cell array plus ha0ha.cc's node pool.
type stripe struct {
	cells []int32 // head index per cell, noNext if empty
	nodes []node
	cap   int
}

func newStripe(nCells, capacity int) *stripe {
	cells := make([]int32, nCells)
	for i := range cells {
		cells[i] = noNext
	}
	return &stripe{cells: cells, cap: capacity}
}

func (s *stripe) cellOf(fold uint64) int {
	return int(fold % uint64(len(s.cells)))
}

// insert appends fold->data to its cell's chain. Arena exhaustion is
// reported via the bool return, not an error — the adaptive-hash use case
// tolerates insert rejection (spec §4.3).
func (s *stripe) insert(fold uint64, data interface{}) bool {
	if len(s.nodes) >= s.cap {
		return false
	}
	cell := s.cellOf(fold)
	idx := int32(len(s.nodes))
	s.nodes = append(s.nodes, node{fold: fold, data: data, next: s.cells[cell]})
	s.cells[cell] = idx
	return true
}

// updateIfFound overwrites the first node matching (fold, oldData) with
// newData, mirroring ha_search_and_update_if_found_func.
func (s *stripe) updateIfFound(fold uint64, oldData, newData interface{}) bool {
	cell := s.cellOf(fold)
	for i := s.cells[cell]; i != noNext; i = s.nodes[i].next {
		if s.nodes[i].fold == fold && s.nodes[i].data == oldData {
			s.nodes[i].data = newData
			return true
		}
	}
	return false
}

// lookup returns every data pointer stored under fold. Duplicate folds
// are legal; callers disambiguate by comparing the data pointer.
func (s *stripe) lookup(fold uint64) []interface{} {
	cell := s.cellOf(fold)
	var out []interface{}
	for i := s.cells[cell]; i != noNext; i = s.nodes[i].next {
		if s.nodes[i].fold == fold {
			out = append(out, s.nodes[i].data)
		}
	}
	return out
}

// delete removes the (fold, data) node and compacts the arena in place by
// moving the last node into the freed slot and fixing up whichever single
// chain pointer referenced it (ha_delete_hash_node / HASH_DELETE_AND_COMPACT).
func (s *stripe) delete(fold uint64, data interface{}) bool {
	cell := s.cellOf(fold)
	var prev int32 = noNext
	idx := s.cells[cell]
	for idx != noNext {
		if s.nodes[idx].fold == fold && s.nodes[idx].data == data {
			break
		}
		prev = idx
		idx = s.nodes[idx].next
	}
	if idx == noNext {
		return false
	}
	s.unlink(cell, prev, idx)
	s.compact(idx)
	return true
}

func (s *stripe) unlink(cell int, prev, idx int32) {
	if prev == noNext {
		s.cells[cell] = s.nodes[idx].next
	} else {
		s.nodes[prev].next = s.nodes[idx].next
	}
}

func (s *stripe) compact(freedIdx int32) {
	last := int32(len(s.nodes) - 1)
	if freedIdx == last {
		s.nodes = s.nodes[:last]
		return
	}
	moved := s.nodes[last]
	s.nodes[freedIdx] = moved
	s.nodes = s.nodes[:last]

	cell := s.cellOf(moved.fold)
	if s.cells[cell] == last {
		s.cells[cell] = freedIdx
		return
	}
	for i := s.cells[cell]; i != noNext; i = s.nodes[i].next {
		if s.nodes[i].next == last {
			s.nodes[i].next = freedIdx
			return
		}
	}
}

// validate checks every node in every cell's chain actually hashes back
// to that cell — ha_validate in the original, a cheap internal
// consistency check for the compaction-on-delete logic.
func (s *stripe) validate() error {
	for cell, head := range s.cells {
		for i := head; i != noNext; i = s.nodes[i].next {
			if got := s.cellOf(s.nodes[i].fold); got != cell {
				return errors.Errorf("ha: node with fold %d stored under cell %d, hashes to cell %d", s.nodes[i].fold, cell, got)
			}
		}
	}
	return nil
}
