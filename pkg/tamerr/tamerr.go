// Package tamerr defines the error kinds produced while parsing and
// rewriting UBI/device-image data. Each sentinel is meant to be wrapped
// with context via fmt.Errorf("...: %w", tamerr.ErrX) and identified by
// callers with errors.Is.
package tamerr

import "errors"

var (
	// ErrTruncatedInput is returned when a read runs past the end of
	// the underlying buffer.
	ErrTruncatedInput = errors.New("truncated input")

	// ErrNoUBIFound is returned when no UBI#/ECH magic occurs anywhere
	// in the scanned blob.
	ErrNoUBIFound = errors.New("no UBI region found")

	// ErrAmbiguousLayout is returned when fewer than two ECH magic
	// occurrences exist, so a PEB stride cannot be inferred.
	ErrAmbiguousLayout = errors.New("ambiguous UBI layout: fewer than two erase counter headers")

	// ErrNoInternalVolume is returned when a UBI container has no PEB
	// whose volume identifier header marks it internal.
	ErrNoInternalVolume = errors.New("no internal volume found")

	// ErrNoVolumeTable is returned when an internal PEB exists but
	// carries no decodable volume table records.
	ErrNoVolumeTable = errors.New("no volume table found")

	// ErrUnknownVolume is returned when a requested volume_id has no
	// matching volume table record.
	ErrUnknownVolume = errors.New("unknown volume")

	// ErrNotADeviceImage is returned when a device image header's
	// magic does not match. Recoverable: callers skip the volume.
	ErrNotADeviceImage = errors.New("not a device image")

	// ErrPutOutOfRange is returned when a device-image splice position
	// falls outside the current image bounds.
	ErrPutOutOfRange = errors.New("put position out of range")

	// ErrInsufficientFreeBlocks is returned when the free PEB pool is
	// too small to hold a volume install's chunk count.
	ErrInsufficientFreeBlocks = errors.New("insufficient free blocks")

	// ErrCorruptHeader marks an ECH, VIH, or VTR that failed its CRC.
	// Per policy this is recovered, not propagated: it is recorded
	// (typically into a multierror.Error) rather than aborting decode.
	ErrCorruptHeader = errors.New("corrupt header")
)
