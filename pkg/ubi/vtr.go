package ubi

import (
	"fmt"

	"github.com/DHCL-LLC/tamashii-go/pkg/bitstream"
	"github.com/DHCL-LLC/tamashii-go/pkg/record"
)

const (
	vtrSize     = 172
	vtrNameSize = 128

	// vtrSentinelCRC is the CRC-32 stored over 168 zero bytes; it
	// marks an unused volume table slot.
	vtrSentinelCRC uint32 = 0xF116C36B

	// maxVolumes is the number of VTR slots read from an internal
	// PEB's payload prefix.
	maxVolumes = 128
)

// VolumeTableRecord is one 172-byte slot of the volume table carried
// in an internal PEB. VolumeID is not itself stored on flash; it is
// assigned from the slot's ordinal position during enumeration.
type VolumeTableRecord struct {
	VolumeID     uint32
	ReservedPEBs uint32
	Alignment    uint32
	DataPadding  uint32
	VolumeType   uint8
	UpdateMarker uint8
	NameSize     uint16
	Name         [vtrNameSize]byte
	Flags        uint8
	RecordCRC32  uint32
}

// NameString returns the first NameSize bytes of Name as a string.
func (v *VolumeTableRecord) NameString() string {
	n := int(v.NameSize)
	if n > len(v.Name) {
		n = len(v.Name)
	}
	return string(v.Name[:n])
}

// IsEmpty reports whether this slot is the sentinel empty-slot
// pattern: an all-zero record body, whose computed CRC is
// vtrSentinelCRC. The stored CRC field is not consulted, so a slot
// that is zero throughout counts as empty too.
func (v *VolumeTableRecord) IsEmpty() bool {
	return record.CRC32(v.marshalBody()) == vtrSentinelCRC
}

// unmarshalVTRBody decodes the 168 bytes preceding a VTR's trailing
// CRC, used by both UnmarshalVTR and CRC computation.
func unmarshalVTRBody(r *bitstream.Reader) (reservedPEBs, alignment, dataPadding uint32, volType, updateMarker uint8, nameSize uint16, name [vtrNameSize]byte, flags uint8, err error) {
	if reservedPEBs, err = r.U32(); err != nil {
		return
	}
	if alignment, err = r.U32(); err != nil {
		return
	}
	if dataPadding, err = r.U32(); err != nil {
		return
	}
	if volType, err = r.U8(); err != nil {
		return
	}
	if updateMarker, err = r.U8(); err != nil {
		return
	}
	if nameSize, err = r.U16(); err != nil {
		return
	}
	nameBytes, nerr := r.Bytes(vtrNameSize)
	if nerr != nil {
		err = nerr
		return
	}
	copy(name[:], nameBytes)
	if flags, err = r.U8(); err != nil {
		return
	}
	if _, err = r.Bytes(23); err != nil { // reserved gap
		return
	}
	return
}

// UnmarshalVTR decodes a VolumeTableRecord at the reader's current
// position, advancing it by vtrSize bytes. slotIndex becomes the
// record's VolumeID, per spec.
func UnmarshalVTR(r *bitstream.Reader, slotIndex uint32) (*VolumeTableRecord, error) {
	start := r.Tell()

	reservedPEBs, alignment, dataPadding, volType, updateMarker, nameSize, name, flags, err := unmarshalVTRBody(r)
	if err != nil {
		return nil, fmt.Errorf("vtr[%d]: %w", slotIndex, err)
	}
	crc, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("vtr[%d]: record_crc32: %w", slotIndex, err)
	}

	if r.Tell()-start != vtrSize {
		return nil, fmt.Errorf("vtr[%d]: decoded %d bytes, want %d", slotIndex, r.Tell()-start, vtrSize)
	}

	return &VolumeTableRecord{
		VolumeID:     slotIndex,
		ReservedPEBs: reservedPEBs,
		Alignment:    alignment,
		DataPadding:  dataPadding,
		VolumeType:   volType,
		UpdateMarker: updateMarker,
		NameSize:     nameSize,
		Name:         name,
		Flags:        flags,
		RecordCRC32:  crc,
	}, nil
}

func (v *VolumeTableRecord) marshalBody() []byte {
	b := make([]byte, 0, vtrSize-4)
	b = appendU32(b, v.ReservedPEBs)
	b = appendU32(b, v.Alignment)
	b = appendU32(b, v.DataPadding)
	b = append(b, v.VolumeType, v.UpdateMarker)
	b = appendU16(b, v.NameSize)
	b = append(b, v.Name[:]...)
	b = append(b, v.Flags)
	b = padGap(b, 23)
	return b
}

// Marshal encodes the full 172-byte VTR, including the stored CRC.
func (v *VolumeTableRecord) Marshal() []byte {
	b := v.marshalBody()
	b = appendU32(b, v.RecordCRC32)
	return b
}

// RecomputeCRC sets RecordCRC32 to the CRC of the record's first 168
// bytes.
func (v *VolumeTableRecord) RecomputeCRC() {
	v.RecordCRC32 = record.CRC32(v.marshalBody())
}

// IsValid reports whether the stored CRC agrees with a fresh
// computation over the record body.
func (v *VolumeTableRecord) IsValid() bool {
	return v.RecordCRC32 == record.CRC32(v.marshalBody())
}
