// Package mtr implements the mini-transaction: a scoped, non-reentrant
// bundle of page latches and redo records that commits atomically.
package mtr

import (
	"fmt"

	"github.com/juju/errors"
)

// LatchKind describes how a block was pinned by a memo entry.
type LatchKind uint8

const (
	LatchNone LatchKind = iota
	LatchShared
	LatchExclusive
)

func (k LatchKind) String() string {
	switch k {
	case LatchShared:
		return "S"
	case LatchExclusive:
		return "X"
	default:
		return "none"
	}
}

// Level tags a memo entry's position in the required acquisition order:
// tree level before page level before block level. Mixing the order
// within one mini-transaction is a programming error.
type Level uint8

const (
	LevelTree Level = iota
	LevelPage
	LevelBlock
)

// Latchable is anything a mini-transaction can pin: the buffer pool's
// Block satisfies it. Kept minimal so mtr does not import buffer_pool.
type Latchable interface {
	// UnlatchToken identifies the block for memo bookkeeping; two calls
	// for the same physical block must return equal tokens.
	UnlatchToken() uintptr
}

type memoEntry struct {
	block Latchable
	kind  LatchKind
	level Level
}

// RedoRecord is a single logical redo entry appended during the
// mini-transaction; the actual log writer is an external collaborator
// (out of scope per spec.md §1) so it is modeled as an opaque payload.
type RedoRecord struct {
	Kind    string
	Payload []byte
}

type state uint8

const (
	stateActive state = iota
	stateCommitted
)

// Sink is the external redo writer. A nil Sink makes Commit a pure
// latch-release operation (used by tests that don't care about durability).
type Sink interface {
	WriteBatch(records []RedoRecord) error
}

// Mtr is a mini-transaction: ACTIVE until Commit, which releases every
// memo'd latch in reverse acquisition order and flushes the redo batch.
// It cannot partially abort — per spec.md §4.1, commit is infallible once
// started and a redo-write error is fatal to the process.
type Mtr struct {
	st       state
	memo     []memoEntry
	redo     []RedoRecord
	maxLevel Level
	sink     Sink
	release  func(block Latchable, kind LatchKind)
}

// Start begins a new active mini-transaction. release is invoked once per
// memo entry, in reverse order, at Commit; it is how the buffer pool learns
// to drop a latch. sink may be nil.
func Start(release func(block Latchable, kind LatchKind), sink Sink) *Mtr {
	return &Mtr{
		st:      stateActive,
		release: release,
		sink:    sink,
	}
}

func (m *Mtr) mustBeActive() {
	if m.st != stateActive {
		panic("mtr: operation on a non-active mini-transaction")
	}
}

// MemoPush records that block is now pinned with the given latch kind at
// the given ordering level. Acquisitions within one mini-transaction MUST
// be non-decreasing in level (tree -> page -> block); a violation is a
// caller bug and panics immediately rather than corrupting state silently.
func (m *Mtr) MemoPush(block Latchable, kind LatchKind, level Level) {
	m.mustBeActive()
	if len(m.memo) > 0 && level < m.maxLevel {
		panic(fmt.Sprintf("mtr: latch ordering violation: level %d acquired after level %d", level, m.maxLevel))
	}
	if level > m.maxLevel {
		m.maxLevel = level
	}
	m.memo = append(m.memo, memoEntry{block: block, kind: kind, level: level})
}

// Contains reports whether block is memo'd with at least the given latch
// kind (exclusive satisfies a shared query). Used by callers that must
// assert a latch is already held before touching a page in place.
func (m *Mtr) Contains(block Latchable, kind LatchKind) bool {
	tok := block.UnlatchToken()
	for _, e := range m.memo {
		if e.block.UnlatchToken() != tok {
			continue
		}
		if kind == LatchShared && (e.kind == LatchShared || e.kind == LatchExclusive) {
			return true
		}
		if kind == e.kind {
			return true
		}
	}
	return false
}

// ReleaseEarly drops a single memo entry ahead of Commit (e.g.
// btr_pcur_release_leaf / move_to_next_page dropping a sibling latch it no
// longer needs). It updates the memo rather than bypassing it, so Commit's
// reverse-order release stays correct for what remains.
func (m *Mtr) ReleaseEarly(block Latchable) {
	m.mustBeActive()
	tok := block.UnlatchToken()
	for i, e := range m.memo {
		if e.block.UnlatchToken() == tok {
			if m.release != nil {
				m.release(e.block, e.kind)
			}
			m.memo = append(m.memo[:i], m.memo[i+1:]...)
			return
		}
	}
}

// LogWrite appends a redo record to the batch this mini-transaction will
// flush at Commit.
func (m *Mtr) LogWrite(rec RedoRecord) {
	m.mustBeActive()
	m.redo = append(m.redo, rec)
}

// Commit releases every remaining memo entry in reverse acquisition order,
// flushes the redo batch, and transitions to COMMITTED. Per spec.md §4.1
// this is infallible: a redo-write error is fatal to the process, not a
// recoverable error return.
func (m *Mtr) Commit() {
	m.mustBeActive()
	for i := len(m.memo) - 1; i >= 0; i-- {
		e := m.memo[i]
		if m.release != nil {
			m.release(e.block, e.kind)
		}
	}
	m.memo = nil
	if m.sink != nil && len(m.redo) > 0 {
		if err := m.sink.WriteBatch(m.redo); err != nil {
			panic(errors.Annotate(err, "mtr: fatal redo write failure").Error())
		}
	}
	m.redo = nil
	m.st = stateCommitted
}

// Active reports whether the mini-transaction is still open.
func (m *Mtr) Active() bool { return m.st == stateActive }

// MemoLen exposes the current memo depth, mostly for tests asserting a
// latch was actually acquired or released.
func (m *Mtr) MemoLen() int { return len(m.memo) }
