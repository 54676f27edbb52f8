package mtr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameSinkInvokesWriteWithNonEmptyPayload(t *testing.T) {
	var got []byte
	sink := &FrameSink{Write: func(compressed []byte) error {
		got = compressed
		return nil
	}}

	err := sink.WriteBatch([]RedoRecord{
		{Kind: "page.insert", Payload: []byte("hello world")},
		{Kind: "page.insert", Payload: []byte("hello world again")},
	})
	require.NoError(t, err)
	require.NotEmpty(t, got)
}

func TestFrameSinkNilWriteIsNoop(t *testing.T) {
	sink := &FrameSink{}
	err := sink.WriteBatch([]RedoRecord{{Kind: "x", Payload: []byte("y")}})
	require.NoError(t, err)
}
