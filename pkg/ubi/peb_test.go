package ubi

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DHCL-LLC/tamashii-go/pkg/bitstream"
	"github.com/DHCL-LLC/tamashii-go/pkg/tamerr"
)

func TestDecodePEBRoundTrip(t *testing.T) {
	peb := volumePEB(1, 1, 0, 1, 'A')
	encoded := peb.Marshal()
	require.Len(t, encoded, testBlockSize)

	decoded, warnings, err := DecodePEB(bitstream.New(encoded), 1, testBlockSize)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.True(t, decoded.ECHValid)
	require.NotNil(t, decoded.VIH)
	require.Equal(t, peb.Data(), decoded.Data())
}

func TestDecodePEBToleratesCorruptECH(t *testing.T) {
	peb := volumePEB(2, 1, 0, 1, 'B')
	encoded := peb.Marshal()
	// Corrupt the magic so the ECH fails validation.
	encoded[0] ^= 0xFF

	decoded, warnings, err := DecodePEB(bitstream.New(encoded), 2, testBlockSize)
	require.NoError(t, err)
	require.NotEmpty(t, warnings)
	require.False(t, decoded.ECHValid)
	require.Nil(t, decoded.VIH)
	require.ErrorIs(t, warnings[0], tamerr.ErrCorruptHeader)
}

func TestDecodePEBToleratesCorruptVIH(t *testing.T) {
	peb := volumePEB(3, 1, 0, 1, 'C')
	encoded := peb.Marshal()
	encoded[testVIDOffset] ^= 0xFF // corrupt VIH magic

	decoded, warnings, err := DecodePEB(bitstream.New(encoded), 3, testBlockSize)
	require.NoError(t, err)
	require.NotEmpty(t, warnings)
	require.True(t, decoded.ECHValid)
	require.Nil(t, decoded.VIH)
	require.True(t, decoded.IsFree())
}

func TestDecodePEBKeepsVIHWithValidMagicButCorruptCRC(t *testing.T) {
	peb := volumePEB(4, 1, 0, 1, 'D')
	encoded := peb.Marshal()
	// Corrupt a CRC-covered field byte past the 4-byte magic (the first
	// byte of sequence_number) so the CRC check fails but the magic
	// itself still matches.
	encoded[testVIDOffset+32] ^= 0xFF

	decoded, warnings, err := DecodePEB(bitstream.New(encoded), 4, testBlockSize)
	require.NoError(t, err)
	require.NotEmpty(t, warnings)
	require.ErrorIs(t, warnings[0], tamerr.ErrCorruptHeader)
	require.NotNil(t, decoded.VIH)
	require.False(t, decoded.VIH.IsValid())
	require.False(t, decoded.IsFree())
	require.Equal(t, peb.VIH.VolumeID, decoded.VIH.VolumeID)
	require.Equal(t, peb.VIH.LEBNumber, decoded.VIH.LEBNumber)
}

func TestFreePEBIsFree(t *testing.T) {
	peb := freePEB(0)
	require.True(t, peb.IsFree())
	require.Nil(t, peb.Data())
}
