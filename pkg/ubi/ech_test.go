package ubi

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DHCL-LLC/tamashii-go/pkg/bitstream"
)

func TestECHRoundTrip(t *testing.T) {
	ech := NewEraseCounterHeader(7, 42)
	require.True(t, ech.IsValid())

	encoded := ech.Marshal()
	require.Len(t, encoded, echSize)

	decoded, err := UnmarshalECH(bitstream.New(encoded))
	require.NoError(t, err)
	require.Equal(t, ech, decoded)
	require.True(t, decoded.IsValid())
}

func TestECHInvalidMagic(t *testing.T) {
	ech := NewEraseCounterHeader(0, 0)
	ech.Magic = 0
	ech.RecomputeCRC()
	require.False(t, ech.IsValid())
}

func TestECHInvalidCRC(t *testing.T) {
	ech := NewEraseCounterHeader(1, 1)
	ech.HeaderCRC32 ^= 0xFFFFFFFF
	require.False(t, ech.IsValid())
}
