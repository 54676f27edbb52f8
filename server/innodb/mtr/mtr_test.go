package mtr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBlock struct{ id uintptr }

func (f *fakeBlock) UnlatchToken() uintptr { return f.id }

func TestCommitReleasesInReverseOrder(t *testing.T) {
	var released []uintptr
	m := Start(func(b Latchable, kind LatchKind) {
		released = append(released, b.UnlatchToken())
	}, nil)

	a := &fakeBlock{id: 1}
	b := &fakeBlock{id: 2}
	c := &fakeBlock{id: 3}

	m.MemoPush(a, LatchShared, LevelTree)
	m.MemoPush(b, LatchShared, LevelPage)
	m.MemoPush(c, LatchExclusive, LevelBlock)

	m.Commit()

	require.Equal(t, []uintptr{3, 2, 1}, released)
	assert.False(t, m.Active())
}

func TestMemoPushOrderingViolationPanics(t *testing.T) {
	m := Start(nil, nil)
	m.MemoPush(&fakeBlock{id: 1}, LatchShared, LevelBlock)

	assert.Panics(t, func() {
		m.MemoPush(&fakeBlock{id: 2}, LatchShared, LevelTree)
	})
}

func TestContainsHonorsSharedVsExclusive(t *testing.T) {
	m := Start(nil, nil)
	blk := &fakeBlock{id: 42}
	m.MemoPush(blk, LatchExclusive, LevelBlock)

	assert.True(t, m.Contains(blk, LatchShared))
	assert.True(t, m.Contains(blk, LatchExclusive))
}

func TestReleaseEarlyUpdatesMemo(t *testing.T) {
	var released []uintptr
	m := Start(func(b Latchable, kind LatchKind) {
		released = append(released, b.UnlatchToken())
	}, nil)

	a := &fakeBlock{id: 1}
	b := &fakeBlock{id: 2}
	m.MemoPush(a, LatchShared, LevelPage)
	m.MemoPush(b, LatchShared, LevelBlock)

	m.ReleaseEarly(a)
	require.Equal(t, 1, m.MemoLen())

	m.Commit()
	assert.Equal(t, []uintptr{1, 2}, released)
}

type fatalSink struct{}

func (fatalSink) WriteBatch(records []RedoRecord) error {
	return assert.AnError
}

func TestCommitPanicsOnFatalRedoWrite(t *testing.T) {
	m := Start(nil, fatalSink{})
	m.LogWrite(RedoRecord{Kind: "test", Payload: []byte("x")})
	assert.Panics(t, func() { m.Commit() })
}
