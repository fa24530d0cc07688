package ubi

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DHCL-LLC/tamashii-go/pkg/bitstream"
	"github.com/DHCL-LLC/tamashii-go/pkg/record"
)

func TestVTREmptySentinel(t *testing.T) {
	empty := make([]byte, vtrSize)
	rec, err := UnmarshalVTR(bitstream.New(empty), 0)
	require.NoError(t, err)
	require.True(t, rec.IsEmpty())
	require.Equal(t, vtrSentinelCRC, record.CRC32(rec.marshalBody()))
}

func TestVTRRoundTrip(t *testing.T) {
	rec := &VolumeTableRecord{
		VolumeID:     2,
		ReservedPEBs: 4,
		Alignment:    1,
		VolumeType:   volumeTypeDynamic,
		NameSize:     4,
	}
	copy(rec.Name[:], "data")
	rec.RecomputeCRC()
	require.True(t, rec.IsValid())
	require.False(t, rec.IsEmpty())

	encoded := rec.Marshal()
	require.Len(t, encoded, vtrSize)

	decoded, err := UnmarshalVTR(bitstream.New(encoded), 2)
	require.NoError(t, err)
	require.Equal(t, rec, decoded)
	require.Equal(t, "data", decoded.NameString())
}
