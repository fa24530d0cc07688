package ubi

import (
	"fmt"

	"github.com/DHCL-LLC/tamashii-go/pkg/bitstream"
	"github.com/DHCL-LLC/tamashii-go/pkg/record"
)

const (
	// echMagic is the big-endian encoding of the literal "UBI#".
	echMagic = 0x55424923

	echSize = 64

	// defaultVIDHeaderOffset and defaultDataOffset are the fixed
	// defaults used when synthesizing a fresh ECH during a write,
	// per the design notes on default constructors.
	defaultVIDHeaderOffset = 512
	defaultDataOffset      = 2048
	defaultUBIVersion      = 1
)

// EraseCounterHeader is the first 64 bytes of every physical erase
// block: the "EC header" or ECH.
type EraseCounterHeader struct {
	Magic           uint32
	UBIVersion      uint8
	EraseCounter    uint64
	VIDHeaderOffset uint32
	DataOffset      uint32
	ImageSequence   uint32
	HeaderCRC32     uint32
}

// NewEraseCounterHeader returns a fresh ECH with the defaults used on
// the write path: magic UBI#, version 1, vid_header_offset 512,
// data_offset 2048, the given erase counter and image sequence, and a
// freshly computed header CRC.
func NewEraseCounterHeader(eraseCounter uint64, imageSequence uint32) *EraseCounterHeader {
	e := &EraseCounterHeader{
		Magic:           echMagic,
		UBIVersion:      defaultUBIVersion,
		EraseCounter:    eraseCounter,
		VIDHeaderOffset: defaultVIDHeaderOffset,
		DataOffset:      defaultDataOffset,
		ImageSequence:   imageSequence,
	}
	e.RecomputeCRC()
	return e
}

// UnmarshalECH decodes an EraseCounterHeader starting at the reader's
// current position, advancing it by echSize bytes.
func UnmarshalECH(r *bitstream.Reader) (*EraseCounterHeader, error) {
	start := r.Tell()

	magic, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("ech: magic: %w", err)
	}
	version, err := r.U8()
	if err != nil {
		return nil, fmt.Errorf("ech: version: %w", err)
	}
	if _, err := r.Bytes(3); err != nil { // reserved
		return nil, fmt.Errorf("ech: reserved gap: %w", err)
	}
	ec, err := r.U64()
	if err != nil {
		return nil, fmt.Errorf("ech: erase_counter: %w", err)
	}
	vidOff, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("ech: vid_header_offset: %w", err)
	}
	dataOff, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("ech: data_offset: %w", err)
	}
	seq, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("ech: image_sequence: %w", err)
	}
	if _, err := r.Bytes(32); err != nil { // reserved
		return nil, fmt.Errorf("ech: reserved gap: %w", err)
	}
	crc, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("ech: header_crc32: %w", err)
	}

	if r.Tell()-start != echSize {
		return nil, fmt.Errorf("ech: decoded %d bytes, want %d", r.Tell()-start, echSize)
	}

	return &EraseCounterHeader{
		Magic:           magic,
		UBIVersion:      version,
		EraseCounter:    ec,
		VIDHeaderOffset: vidOff,
		DataOffset:      dataOff,
		ImageSequence:   seq,
		HeaderCRC32:     crc,
	}, nil
}

// marshalBody encodes the first 60 bytes of the header (everything
// but the trailing CRC field), used both for final encoding and for
// CRC computation.
func (e *EraseCounterHeader) marshalBody() []byte {
	b := make([]byte, 0, echSize-4)
	b = appendU32(b, e.Magic)
	b = append(b, e.UBIVersion)
	b = padGap(b, 3)
	b = appendU64(b, e.EraseCounter)
	b = appendU32(b, e.VIDHeaderOffset)
	b = appendU32(b, e.DataOffset)
	b = appendU32(b, e.ImageSequence)
	b = padGap(b, 32)
	return b
}

// Marshal encodes the full 64-byte ECH, including the stored CRC
// field (not recomputed; call RecomputeCRC first if needed).
func (e *EraseCounterHeader) Marshal() []byte {
	b := e.marshalBody()
	b = appendU32(b, e.HeaderCRC32)
	return b
}

// RecomputeCRC sets HeaderCRC32 to the CRC of the header's first 60
// bytes.
func (e *EraseCounterHeader) RecomputeCRC() {
	e.HeaderCRC32 = record.CRC32(e.marshalBody())
}

// IsValid reports whether the magic matches and the stored CRC agrees
// with a fresh computation over the header body.
func (e *EraseCounterHeader) IsValid() bool {
	return e.Magic == echMagic && e.HeaderCRC32 == record.CRC32(e.marshalBody())
}
