package record

import (
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCRC32IsComplemented(t *testing.T) {
	data := []byte("some header bytes")
	require.Equal(t, ^crc32.ChecksumIEEE(data), CRC32(data))
}

func TestPadHelpers(t *testing.T) {
	require.Equal(t, []byte{1, 2, 0xFF, 0xFF}, PadFF([]byte{1, 2}, 4))
	require.Equal(t, []byte{1, 2, 0, 0}, PadZero([]byte{1, 2}, 4))
	require.Equal(t, []byte{1, 2}, PadFF([]byte{1, 2}, 1))
}
