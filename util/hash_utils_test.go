package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashCodeDeterministic(t *testing.T) {
	require.Equal(t, HashCode([]byte("a")), HashCode([]byte("a")))
	require.NotEqual(t, HashCode([]byte("a")), HashCode([]byte("b")))
}

func TestConvertUInt4BytesLittleEndian(t *testing.T) {
	buf := ConvertUInt4Bytes(0x01020304)
	require.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, buf)
}
