package uimage

import (
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecomputeCRC(t *testing.T) {
	header := make([]byte, headerSize)
	body := []byte("new kernel payload bytes")

	recomputed := RecomputeCRC(header, body)

	wantDCRC := crc32.ChecksumIEEE(body)
	require.Equal(t, wantDCRC, binary.BigEndian.Uint32(recomputed[ihDCRCOffset:]))

	headerForHCRC := make([]byte, headerSize)
	copy(headerForHCRC, recomputed)
	binary.BigEndian.PutUint32(headerForHCRC[ihHCRCOffset:], 0)
	wantHCRC := crc32.ChecksumIEEE(headerForHCRC)
	require.Equal(t, wantHCRC, binary.BigEndian.Uint32(recomputed[ihHCRCOffset:]))
}

func TestRecomputeCRCShortHeaderNoop(t *testing.T) {
	short := make([]byte, 10)
	out := RecomputeCRC(short, []byte("x"))
	require.Equal(t, short, out)
}
