package undo

import (
	"sync"

	"github.com/juju/errors"
)

// MemLog is an in-memory undo log: a per-transaction stack of records plus
// a roll-pointer index. The real undo log lives in rollback-segment pages
// under FSP (external to the core, spec §1); MemLog lets C5/C6 be
// exercised the way Tree stands in for the buffer pool.
type MemLog struct {
	mu        sync.Mutex
	stacks    map[uint64][]*Rec
	byRollPtr map[uint64]*Rec
}

func NewMemLog() *MemLog {
	return &MemLog{stacks: make(map[uint64][]*Rec), byRollPtr: make(map[uint64]*Rec)}
}

// Push records rec as the new top of trxID's undo stack.
func (l *MemLog) Push(trxID uint64, rec *Rec) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stacks[trxID] = append(l.stacks[trxID], rec)
	l.byRollPtr[rec.RollPtr.Pack()] = rec
}

func (l *MemLog) PopTopRecOfTrx(trxID, rollLimit uint64) (*Rec, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	stack := l.stacks[trxID]
	if len(stack) == 0 {
		return nil, false
	}
	top := stack[len(stack)-1]
	if top.UndoNo < rollLimit {
		return nil, false
	}
	l.stacks[trxID] = stack[:len(stack)-1]
	return top, true
}

func (l *MemLog) GetUndoRecLow(rp RollPtr) (*Rec, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.byRollPtr[rp.Pack()]
	if !ok {
		return nil, errors.NotFoundf("undo record for roll_ptr %x", rp.Pack())
	}
	return rec, nil
}

// StackLen exposes the remaining undo-stack depth, used by tests asserting
// spec invariant 5 ("the transaction's undo stack has shrunk by exactly
// one record").
func (l *MemLog) StackLen(trxID uint64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.stacks[trxID])
}
