// Package uimage implements the documented-but-optional extension
// noted in spec.md §9: recomputing a U-Boot legacy image's own header
// and data CRC-32 fields after its payload has been spliced by a
// device-image write. This is never invoked by pkg/deviceimage itself;
// it is a separate, opt-in step a write-path caller may apply.
package uimage

import (
	"encoding/binary"
	"hash/crc32"
)

const (
	headerSize = 64

	// ihHCRCOffset and ihDCRCOffset are the header-CRC and data-CRC
	// field offsets within the 64-byte uImage header.
	ihHCRCOffset = 4
	ihDCRCOffset = 24
)

// RecomputeCRC returns a copy of header with its ih_hcrc field
// recomputed (over the header with ih_hcrc zeroed) and its ih_dcrc
// field recomputed over body. Unlike the UBI on-flash CRC convention,
// uImage stores the plain (non-complemented) IEEE CRC-32, matching
// U-Boot's own mkimage tool.
func RecomputeCRC(header []byte, body []byte) []byte {
	out := make([]byte, len(header))
	copy(out, header)
	if len(out) < headerSize {
		return out
	}

	binary.BigEndian.PutUint32(out[ihDCRCOffset:], crc32.ChecksumIEEE(body))

	binary.BigEndian.PutUint32(out[ihHCRCOffset:], 0)
	binary.BigEndian.PutUint32(out[ihHCRCOffset:], crc32.ChecksumIEEE(out[:headerSize]))

	return out
}
