package ubi

import (
	"fmt"

	"github.com/DHCL-LLC/tamashii-go/pkg/bitstream"
	"github.com/DHCL-LLC/tamashii-go/pkg/tamerr"
)

// PhysicalEraseBlock is one NAND erase block: an ECH, an optional VIH,
// an optional decoded volume table (only present on internal PEBs),
// and a data payload. Payload bytes borrow from the decoding buffer
// until a mutation forces a copy.
type PhysicalEraseBlock struct {
	BlockID   int
	BlockSize int

	ECH      *EraseCounterHeader
	ECHValid bool

	VIH *VolumeIdentifierHeader

	VolumeTable []*VolumeTableRecord

	dataSize int
	data     []byte
}

// DecodePEB decodes one physical erase block starting at the reader's
// current position, advancing it by blockSize bytes. Per spec.md's
// CorruptHeader policy, an invalid ECH or VIH does not fail the
// decode: it is recorded as a non-fatal warning and the PEB is
// retained with reduced information (an invalid ECH leaves an empty
// payload and no VIH; a VIH with a bad magic is dropped, while a VIH
// whose magic matches but whose CRC fails is kept).
// Truncated reads past the buffer's end are the only fatal condition.
func DecodePEB(r *bitstream.Reader, blockID, blockSize int) (peb *PhysicalEraseBlock, warnings []error, err error) {
	start := r.Tell()

	ech, err := UnmarshalECH(r)
	if err != nil {
		return nil, nil, fmt.Errorf("peb[%d]: ech: %w", blockID, err)
	}

	peb = &PhysicalEraseBlock{
		BlockID:   blockID,
		BlockSize: blockSize,
		ECH:       ech,
	}

	if !ech.IsValid() {
		warnings = append(warnings, fmt.Errorf("peb[%d]: ech header crc/magic invalid: %w", blockID, tamerr.ErrCorruptHeader))
		// Still seek to the end of this block so the caller's
		// reader stays aligned with the PEB stride.
		r.Seek(start + blockSize)
		return peb, warnings, nil
	}
	peb.ECHValid = true

	r.Seek(start + int(ech.VIDHeaderOffset))
	vih, vihErr := UnmarshalVIH(r)
	if vihErr != nil {
		// Truncated read while decoding the VIH region is still
		// fatal: the blob itself is too short for the inferred
		// layout.
		return nil, nil, fmt.Errorf("peb[%d]: vih: %w", blockID, vihErr)
	}
	// Presence is gated on magic alone, per spec.md §4.4: a VIH with a
	// valid magic but a corrupt CRC is still kept and still used for
	// is_internal/volume_id/leb_number, matching ubi.py's
	// PhysicalEraseBlock.from_data. CRC validity only affects whether a
	// warning is recorded.
	if vih.HasValidMagic() {
		peb.VIH = vih
		if !vih.IsValid() {
			warnings = append(warnings, fmt.Errorf("peb[%d]: vih header crc invalid: %w", blockID, tamerr.ErrCorruptHeader))
		}
	} else {
		warnings = append(warnings, fmt.Errorf("peb[%d]: vih magic invalid: %w", blockID, tamerr.ErrCorruptHeader))
	}

	dataSize := blockSize - int(ech.DataOffset)
	peb.dataSize = dataSize

	r.Seek(start + int(ech.DataOffset))
	data, derr := r.Bytes(dataSize)
	if derr != nil {
		return nil, nil, fmt.Errorf("peb[%d]: data: %w", blockID, derr)
	}
	peb.data = data

	if peb.VIH != nil && peb.VIH.IsInternal() {
		vtrs, verr := decodeVolumeTable(data)
		if verr != nil {
			warnings = append(warnings, verr)
		} else {
			peb.VolumeTable = vtrs
		}
	}

	r.Seek(start + blockSize)
	return peb, warnings, nil
}

// decodeVolumeTable reads up to maxVolumes VolumeTableRecords from the
// given payload prefix, discarding empty sentinel slots.
func decodeVolumeTable(payload []byte) ([]*VolumeTableRecord, error) {
	var out []*VolumeTableRecord
	vr := bitstream.New(payload)
	for i := 0; i < maxVolumes; i++ {
		if vr.Tell()+vtrSize > len(payload) {
			break
		}
		rec, err := UnmarshalVTR(vr, uint32(i))
		if err != nil {
			return nil, fmt.Errorf("volume table: %w", err)
		}
		if rec.IsEmpty() {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Data returns this PEB's logical payload: empty if there is no VIH,
// the full data region for a dynamic volume, or the VIH.DataSize
// prefix for a static volume.
func (p *PhysicalEraseBlock) Data() []byte {
	if p.VIH == nil {
		return nil
	}
	if p.VIH.VolumeType == volumeTypeStatic {
		n := int(p.VIH.DataSize)
		if n > len(p.data) {
			n = len(p.data)
		}
		return p.data[:n]
	}
	return p.data
}

// SetData replaces the raw data payload (copy-on-write: callers pass
// an owned slice sized to DataSize()).
func (p *PhysicalEraseBlock) SetData(data []byte) {
	p.data = data
	p.dataSize = len(data)
}

// DataSize returns the size of the PEB's raw data region
// (BlockSize - ECH.DataOffset), independent of VIH static trimming.
func (p *PhysicalEraseBlock) DataSize() int {
	return p.dataSize
}

// IsFree reports whether this PEB carries no volume identifier header
// and is therefore available to the free-block pool.
func (p *PhysicalEraseBlock) IsFree() bool {
	return p.VIH == nil
}

// Marshal encodes the PEB to exactly BlockSize bytes: ECH, 0xFF
// padding to the VID offset, VIH (or 0xFF padding if absent), 0xFF
// padding to the data offset, data, then 0xFF padding to BlockSize.
func (p *PhysicalEraseBlock) Marshal() []byte {
	out := make([]byte, 0, p.BlockSize)
	out = append(out, p.ECH.Marshal()...)
	for len(out) < int(p.ECH.VIDHeaderOffset) {
		out = append(out, 0xFF)
	}
	if p.VIH != nil {
		out = append(out, p.VIH.Marshal()...)
	}
	for len(out) < int(p.ECH.DataOffset) {
		out = append(out, 0xFF)
	}
	out = append(out, p.data...)
	for len(out) < p.BlockSize {
		out = append(out, 0xFF)
	}
	if len(out) > p.BlockSize {
		out = out[:p.BlockSize]
	}
	return out
}

// NewFreePEB synthesizes a fresh, unused PEB: a default ECH, no VIH,
// and an all-0xFF data region, used by Volume Delete to reclaim
// blocks.
func NewFreePEB(blockID, blockSize int, eraseCounter uint64, imageSequence uint32) *PhysicalEraseBlock {
	ech := NewEraseCounterHeader(eraseCounter, imageSequence)
	dataSize := blockSize - int(ech.DataOffset)
	data := make([]byte, dataSize)
	for i := range data {
		data[i] = 0xFF
	}
	return &PhysicalEraseBlock{
		BlockID:   blockID,
		BlockSize: blockSize,
		ECH:       ech,
		ECHValid:  true,
		dataSize:  dataSize,
		data:      data,
	}
}
