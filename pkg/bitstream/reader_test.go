package bitstream

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypedReads(t *testing.T) {
	buf := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0xAA, 0xBB}
	r := New(buf)

	u8, err := r.U8()
	require.NoError(t, err)
	require.Equal(t, uint8(0x01), u8)

	u16, err := r.U16()
	require.NoError(t, err)
	require.Equal(t, uint16(0x0203), u16)

	u32, err := r.U32()
	require.NoError(t, err)
	require.Equal(t, uint32(0x04050607), u32)

	b, err := r.Bytes(1)
	require.NoError(t, err)
	require.Equal(t, []byte{0x08}, b)

	require.Equal(t, 8, r.Tell())
}

func TestSeekAndPeek(t *testing.T) {
	buf := []byte{0, 1, 2, 3, 4, 5}
	r := New(buf)
	r.Seek(3)
	b, err := r.Bytes(2)
	require.NoError(t, err)
	require.Equal(t, []byte{3, 4}, b)

	peeked, err := r.PeekBytes(0, 2)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 1}, peeked)
	require.Equal(t, 5, r.Tell()) // unaffected by peek
}

func TestTruncatedRead(t *testing.T) {
	r := New([]byte{1, 2})
	_, err := r.U32()
	require.Error(t, err)
}

func TestU64(t *testing.T) {
	buf := make([]byte, 8)
	buf[7] = 0x2A
	r := New(buf)
	v, err := r.U64()
	require.NoError(t, err)
	require.Equal(t, uint64(0x2A), v)
}
