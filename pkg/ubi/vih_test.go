package ubi

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DHCL-LLC/tamashii-go/pkg/bitstream"
)

func TestVIHRoundTrip(t *testing.T) {
	vih := NewVolumeIdentifierHeader(3, 5, 100)
	encoded := vih.Marshal()
	require.Len(t, encoded, vihSize)

	decoded, err := UnmarshalVIH(bitstream.New(encoded))
	require.NoError(t, err)
	require.Equal(t, vih, decoded)
	require.True(t, decoded.IsValid())
}

func TestVIHIsInternal(t *testing.T) {
	internal := NewVolumeIdentifierHeader(internalVolumeThreshold, 0, 0)
	require.True(t, internal.IsInternal())

	user := NewVolumeIdentifierHeader(0, 0, 0)
	require.False(t, user.IsInternal())
}
