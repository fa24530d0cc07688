package ubi

import "encoding/binary"

// appendU32 appends the big-endian encoding of v to b.
func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

// appendU64 appends the big-endian encoding of v to b.
func appendU64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

// appendU16 appends the big-endian encoding of v to b.
func appendU16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

// padGap appends n zero bytes to b, used for the reserved/gap ranges
// inside a record's own encoded bytes.
func padGap(b []byte, n int) []byte {
	for i := 0; i < n; i++ {
		b = append(b, 0x00)
	}
	return b
}
