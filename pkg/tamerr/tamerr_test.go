package tamerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSentinelsWrapAndUnwrap(t *testing.T) {
	wrapped := fmt.Errorf("decoding volume 3: %w", ErrUnknownVolume)
	require.ErrorIs(t, wrapped, ErrUnknownVolume)
	require.False(t, errors.Is(wrapped, ErrNoVolumeTable))
}

func TestSentinelsAreDistinct(t *testing.T) {
	all := []error{
		ErrTruncatedInput, ErrNoUBIFound, ErrAmbiguousLayout, ErrNoInternalVolume,
		ErrNoVolumeTable, ErrUnknownVolume, ErrNotADeviceImage, ErrPutOutOfRange,
		ErrInsufficientFreeBlocks, ErrCorruptHeader,
	}
	for i, a := range all {
		for j, b := range all {
			if i == j {
				continue
			}
			require.False(t, errors.Is(a, b), "%v should not match %v", a, b)
		}
	}
}
