// Package record provides the shared codec primitives used by every
// on-flash header in pkg/ubi and pkg/deviceimage: the CRC-32 convention
// this format stores on flash, and small fixed-width encoding helpers.
// Individual record types (EraseCounterHeader, VolumeIdentifierHeader,
// VolumeTableRecord, ...) declare their own Marshal/Unmarshal pairs
// rather than going through a reflection-driven codec, the same way
// the teacher's pkg/descriptor records do.
package record

import "hash/crc32"

// CRC32 computes the on-flash CRC-32 convention used by every
// self-validating record in this format: the IEEE 802.3 polynomial,
// bit-reversed (the table form encoding/hash/crc32 already uses), with
// the result stored as the bitwise complement of the standard checksum.
func CRC32(data []byte) uint32 {
	return ^crc32.ChecksumIEEE(data)
}

// PadFF appends 0xFF bytes to b until it is exactly n bytes long. It is
// a no-op if b is already at least n bytes.
func PadFF(b []byte, n int) []byte {
	for len(b) < n {
		b = append(b, 0xFF)
	}
	return b
}

// PadZero appends 0x00 bytes to b until it is exactly n bytes long,
// used for reserved/gap regions within a record's own encoded bytes
// (as opposed to the 0xFF padding used between records inside a PEB).
func PadZero(b []byte, n int) []byte {
	for len(b) < n {
		b = append(b, 0x00)
	}
	return b
}
