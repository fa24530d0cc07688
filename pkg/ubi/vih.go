package ubi

import (
	"fmt"

	"github.com/DHCL-LLC/tamashii-go/pkg/bitstream"
	"github.com/DHCL-LLC/tamashii-go/pkg/record"
)

const (
	// vihMagic is the big-endian encoding of the literal "UBI!".
	vihMagic = 0x55424921

	vihSize = 64

	// internalVolumeThreshold is the boundary above which a
	// volume_id is considered internal (the volume-table PEB marker).
	internalVolumeThreshold = 0x7FFFFFFF - 4096

	volumeTypeDynamic = 1
	volumeTypeStatic  = 2
)

// VolumeIdentifierHeader is the 64-byte VID header (VIH) present in
// every PEB that belongs to a volume.
type VolumeIdentifierHeader struct {
	Magic            uint32
	UBIVersion       uint8
	VolumeType       uint8
	CopyFlag         uint8
	Compatibility    uint8
	VolumeID         uint32
	LEBNumber        uint32
	DataSize         uint32
	UsedEraseBlocks  uint32
	DataPadding      uint32
	DataCRC32        uint32
	SequenceNumber   uint64
	HeaderCRC32      uint32
}

// NewVolumeIdentifierHeader returns a fresh, dynamic-type VIH for the
// given volume/LEB with defaults per the design notes: copy_flag 0,
// compatibility 0, magic UBI!. The caller fills in data size/CRC and
// calls RecomputeCRC before use.
func NewVolumeIdentifierHeader(volumeID, lebNumber uint32, sequenceNumber uint64) *VolumeIdentifierHeader {
	v := &VolumeIdentifierHeader{
		Magic:          vihMagic,
		UBIVersion:     defaultUBIVersion,
		VolumeType:     volumeTypeDynamic,
		VolumeID:       volumeID,
		LEBNumber:      lebNumber,
		SequenceNumber: sequenceNumber,
	}
	v.RecomputeCRC()
	return v
}

// IsInternal reports whether this VIH marks the PEB as carrying
// internal (volume-table) metadata rather than user volume data.
func (v *VolumeIdentifierHeader) IsInternal() bool {
	return v.VolumeID >= internalVolumeThreshold
}

// UnmarshalVIH decodes a VolumeIdentifierHeader starting at the
// reader's current position, advancing it by vihSize bytes.
func UnmarshalVIH(r *bitstream.Reader) (*VolumeIdentifierHeader, error) {
	start := r.Tell()

	magic, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("vih: magic: %w", err)
	}
	version, err := r.U8()
	if err != nil {
		return nil, fmt.Errorf("vih: version: %w", err)
	}
	volType, err := r.U8()
	if err != nil {
		return nil, fmt.Errorf("vih: volume_type: %w", err)
	}
	copyFlag, err := r.U8()
	if err != nil {
		return nil, fmt.Errorf("vih: copy_flag: %w", err)
	}
	compat, err := r.U8()
	if err != nil {
		return nil, fmt.Errorf("vih: compatibility: %w", err)
	}
	volID, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("vih: volume_id: %w", err)
	}
	lebNum, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("vih: leb_number: %w", err)
	}
	dataSize, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("vih: data_size: %w", err)
	}
	usedEBs, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("vih: used_erase_blocks: %w", err)
	}
	dataPad, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("vih: data_padding: %w", err)
	}
	dataCRC, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("vih: data_crc32: %w", err)
	}
	seqNum, err := r.U64()
	if err != nil {
		return nil, fmt.Errorf("vih: sequence_number: %w", err)
	}
	if _, err := r.Bytes(20); err != nil { // reserved gap before header_crc32
		return nil, fmt.Errorf("vih: reserved gap: %w", err)
	}
	crc, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("vih: header_crc32: %w", err)
	}

	if r.Tell()-start != vihSize {
		return nil, fmt.Errorf("vih: decoded %d bytes, want %d", r.Tell()-start, vihSize)
	}

	return &VolumeIdentifierHeader{
		Magic:           magic,
		UBIVersion:      version,
		VolumeType:      volType,
		CopyFlag:        copyFlag,
		Compatibility:   compat,
		VolumeID:        volID,
		LEBNumber:       lebNum,
		DataSize:        dataSize,
		UsedEraseBlocks: usedEBs,
		DataPadding:     dataPad,
		DataCRC32:       dataCRC,
		SequenceNumber:  seqNum,
		HeaderCRC32:     crc,
	}, nil
}

func (v *VolumeIdentifierHeader) marshalBody() []byte {
	b := make([]byte, 0, vihSize-4)
	b = appendU32(b, v.Magic)
	b = append(b, v.UBIVersion, v.VolumeType, v.CopyFlag, v.Compatibility)
	b = appendU32(b, v.VolumeID)
	b = appendU32(b, v.LEBNumber)
	b = appendU32(b, v.DataSize)
	b = appendU32(b, v.UsedEraseBlocks)
	b = appendU32(b, v.DataPadding)
	b = appendU32(b, v.DataCRC32)
	b = appendU64(b, v.SequenceNumber)
	b = padGap(b, 20)
	return b
}

// Marshal encodes the full 64-byte VIH, including the stored CRC
// field.
func (v *VolumeIdentifierHeader) Marshal() []byte {
	b := v.marshalBody()
	b = appendU32(b, v.HeaderCRC32)
	return b
}

// RecomputeCRC sets HeaderCRC32 to the CRC of the header's first 60
// bytes.
func (v *VolumeIdentifierHeader) RecomputeCRC() {
	v.HeaderCRC32 = record.CRC32(v.marshalBody())
}

// IsValid reports whether the magic matches and the stored CRC agrees
// with a fresh computation over the header body.
func (v *VolumeIdentifierHeader) IsValid() bool {
	return v.Magic == vihMagic && v.HeaderCRC32 == record.CRC32(v.marshalBody())
}

// HasValidMagic reports whether the header's magic matches, independent
// of CRC. A PEB's VIH is kept on this check alone (spec.md §4.4): a
// magic-valid but CRC-corrupt VIH still carries real volume_id/leb_number
// metadata that must not be discarded.
func (v *VolumeIdentifierHeader) HasValidMagic() bool {
	return v.Magic == vihMagic
}
