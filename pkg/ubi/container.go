package ubi

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/boljen/go-bitmap"
	"github.com/hashicorp/go-multierror"

	"github.com/DHCL-LLC/tamashii-go/pkg/bitstream"
	"github.com/DHCL-LLC/tamashii-go/pkg/tamerr"
)

// echMagicBytes is the literal 4-byte signature scanned for when
// locating the UBI region inside an arbitrary blob.
var echMagicBytes = func() []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, echMagic)
	return b
}()

// Container owns the ordered list of physical erase blocks decoded
// from a contiguous UBI region within a larger blob, plus the byte
// offsets of that region within the enclosing buffer.
type Container struct {
	StartOffset int
	EndOffset   int
	BlockSize   int
	DataSize    int

	Blocks []*PhysicalEraseBlock

	// Warnings accumulates every non-fatal CorruptHeader occurrence
	// encountered while decoding, so --verbose reporting can surface
	// them without decode itself failing.
	Warnings *multierror.Error

	// freeMap tracks which block indices currently carry no VIH and
	// are therefore available to Volume Install. Index i corresponds
	// to Blocks[i].
	freeMap bitmap.Bitmap
}

// locateSignatures returns every byte offset in blob at which the ECH
// magic literal occurs.
func locateSignatures(blob []byte) []int {
	var offsets []int
	idx := 0
	for {
		pos := bytes.Index(blob[idx:], echMagicBytes)
		if pos < 0 {
			break
		}
		offsets = append(offsets, idx+pos)
		idx += pos + 1
	}
	return offsets
}

// locateRegion infers the UBI region's start offset, PEB size, and
// PEB count from the stride between consecutive ECH magic
// occurrences, per spec.md §4.5.
func locateRegion(blob []byte) (startOffset, blockSize, blockCount int, err error) {
	offsets := locateSignatures(blob)
	if len(offsets) == 0 {
		return 0, 0, 0, tamerr.ErrNoUBIFound
	}
	if len(offsets) < 2 {
		return 0, 0, 0, tamerr.ErrAmbiguousLayout
	}

	strideCounts := make(map[int]int)
	for i := 1; i < len(offsets); i++ {
		strideCounts[offsets[i]-offsets[i-1]]++
	}

	bestStride, bestCount := 0, -1
	for stride, count := range strideCounts {
		if count > bestCount || (count == bestCount && stride < bestStride) {
			bestStride, bestCount = stride, count
		}
	}

	start := -1
	for i := 0; i < len(offsets)-1; i++ {
		if offsets[i+1]-offsets[i] == bestStride {
			start = offsets[i]
			break
		}
	}
	if start < 0 {
		return 0, 0, 0, tamerr.ErrAmbiguousLayout
	}

	return start, bestStride, bestCount + 1, nil
}

// Decode locates the UBI region within blob and decodes every PEB in
// it. The container's DataSize is taken from the first decoded PEB.
func Decode(blob []byte) (*Container, error) {
	start, blockSize, blockCount, err := locateRegion(blob)
	if err != nil {
		return nil, err
	}
	end := start + blockCount*blockSize

	r := bitstream.New(blob)
	r.Seek(start)

	c := &Container{
		StartOffset: start,
		EndOffset:   end,
		BlockSize:   blockSize,
		Blocks:      make([]*PhysicalEraseBlock, 0, blockCount),
		freeMap:     bitmap.New(blockCount),
	}

	for i := 0; i < blockCount; i++ {
		peb, warnings, err := DecodePEB(r, i, blockSize)
		if err != nil {
			return nil, fmt.Errorf("ubi: decoding block %d: %w", i, err)
		}
		for _, w := range warnings {
			c.Warnings = multierror.Append(c.Warnings, w)
		}
		if peb.IsFree() {
			c.freeMap.Set(i, true)
		}
		c.Blocks = append(c.Blocks, peb)
	}
	if len(c.Blocks) > 0 {
		c.DataSize = c.Blocks[0].DataSize()
	}
	return c, nil
}

// internalBlocks returns every PEB whose VIH marks it internal.
func (c *Container) internalBlocks() []*PhysicalEraseBlock {
	var out []*PhysicalEraseBlock
	for _, p := range c.Blocks {
		if p.VIH != nil && p.VIH.IsInternal() {
			out = append(out, p)
		}
	}
	return out
}

// VolumeTable returns the authoritative list of volume table records,
// taken from the first internal PEB's decoded volume table.
func (c *Container) VolumeTable() ([]*VolumeTableRecord, error) {
	internal := c.internalBlocks()
	if len(internal) == 0 {
		return nil, tamerr.ErrNoInternalVolume
	}
	for _, p := range internal {
		if p.VolumeTable != nil {
			return p.VolumeTable, nil
		}
	}
	return nil, tamerr.ErrNoVolumeTable
}

// VolumeByID returns the volume table record for the given volume_id.
func (c *Container) VolumeByID(volumeID uint32) (*VolumeTableRecord, error) {
	vtrs, err := c.VolumeTable()
	if err != nil {
		return nil, err
	}
	for _, v := range vtrs {
		if v.VolumeID == volumeID {
			return v, nil
		}
	}
	return nil, fmt.Errorf("volume %d: %w", volumeID, tamerr.ErrUnknownVolume)
}

// ResolveLEBs implements spec.md §4.5's LEB resolution algorithm for
// one volume_id: among PEBs carrying that volume, keep only those at
// the maximum image_sequence, then for each leb_number keep the block
// with the highest sequence_number.
func (c *Container) ResolveLEBs(volumeID uint32) map[uint32]*PhysicalEraseBlock {
	var candidates []*PhysicalEraseBlock
	for _, p := range c.Blocks {
		if p.VIH == nil || p.VIH.VolumeID != volumeID {
			continue
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		return nil
	}

	var maxSeq uint32
	for _, p := range candidates {
		if p.ECH.ImageSequence > maxSeq {
			maxSeq = p.ECH.ImageSequence
		}
	}

	var current []*PhysicalEraseBlock
	for _, p := range candidates {
		if p.ECH.ImageSequence == maxSeq {
			current = append(current, p)
		}
	}

	sort.SliceStable(current, func(i, j int) bool {
		if current[i].VIH.LEBNumber != current[j].VIH.LEBNumber {
			return current[i].VIH.LEBNumber < current[j].VIH.LEBNumber
		}
		return current[i].VIH.SequenceNumber > current[j].VIH.SequenceNumber
	})

	out := make(map[uint32]*PhysicalEraseBlock)
	for _, p := range current {
		if _, seen := out[p.VIH.LEBNumber]; !seen {
			out[p.VIH.LEBNumber] = p
		}
	}
	return out
}

// ReadVolume reconstructs the logical contents of the given volume
// table record: reserved_pebs × data_size bytes, with missing LEBs
// filled as 0xFF runs.
func (c *Container) ReadVolume(vtr *VolumeTableRecord) []byte {
	lebs := c.ResolveLEBs(vtr.VolumeID)
	out := make([]byte, 0, int(vtr.ReservedPEBs)*c.DataSize)
	for leb := uint32(0); leb < vtr.ReservedPEBs; leb++ {
		if p, ok := lebs[leb]; ok {
			data := p.Data()
			if len(data) < c.DataSize {
				padded := make([]byte, c.DataSize)
				copy(padded, data)
				for i := len(data); i < c.DataSize; i++ {
					padded[i] = 0xFF
				}
				data = padded
			}
			out = append(out, data[:c.DataSize]...)
		} else {
			pad := make([]byte, c.DataSize)
			for i := range pad {
				pad[i] = 0xFF
			}
			out = append(out, pad...)
		}
	}
	return out
}

// DeleteVolumeBlocks replaces every PEB carrying volumeID with a fresh
// free PEB, reclaiming them into the free-block pool.
func (c *Container) DeleteVolumeBlocks(volumeID uint32) {
	for i, p := range c.Blocks {
		if p.VIH != nil && p.VIH.VolumeID == volumeID {
			fresh := NewFreePEB(p.BlockID, p.BlockSize, p.ECH.EraseCounter+1, p.ECH.ImageSequence)
			c.Blocks[i] = fresh
			c.freeMap.Set(i, true)
		}
	}
}

// freeIndices returns the indices of every PEB currently in the free
// pool, in ascending block_id order.
func (c *Container) freeIndices() []int {
	var out []int
	for i := 0; i < len(c.Blocks); i++ {
		if c.freeMap.Get(i) {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

// PutVolumeBlocks implements spec.md §4.5's Volume Install: splits
// data into DataSize chunks (sparse chunks that are entirely 0xFF are
// omitted), allocates that many PEBs from the free pool in ascending
// block_id order, and installs each chunk under a fresh VIH for
// volumeID at the chunk's LEB number. It returns ErrInsufficientFreeBlocks
// if the pool cannot cover every non-sparse chunk.
func (c *Container) PutVolumeBlocks(volumeID uint32, data []byte, imageSequence uint32) error {
	type chunk struct {
		leb  uint32
		data []byte
	}
	var chunks []chunk
	total := len(data)
	for off, leb := 0, uint32(0); off < total; off, leb = off+c.DataSize, leb+1 {
		end := off + c.DataSize
		if end > total {
			end = total
		}
		piece := data[off:end]
		if allFF(piece) {
			continue
		}
		padded := make([]byte, c.DataSize)
		copy(padded, piece)
		for i := len(piece); i < c.DataSize; i++ {
			padded[i] = 0xFF
		}
		chunks = append(chunks, chunk{leb: leb, data: padded})
	}

	free := c.freeIndices()
	if len(free) < len(chunks) {
		return fmt.Errorf("need %d free blocks, have %d: %w", len(chunks), len(free), tamerr.ErrInsufficientFreeBlocks)
	}

	var seqCounter uint64
	for _, p := range c.Blocks {
		if p.VIH != nil && p.VIH.SequenceNumber > seqCounter {
			seqCounter = p.VIH.SequenceNumber
		}
	}

	for i, ch := range chunks {
		idx := free[i]
		old := c.Blocks[idx]
		seqCounter++
		ech := NewEraseCounterHeader(old.ECH.EraseCounter+1, imageSequence)
		vih := NewVolumeIdentifierHeader(volumeID, ch.leb, seqCounter)
		peb := &PhysicalEraseBlock{
			BlockID:   old.BlockID,
			BlockSize: old.BlockSize,
			ECH:       ech,
			ECHValid:  true,
			VIH:       vih,
		}
		peb.SetData(ch.data)
		c.Blocks[idx] = peb
		c.freeMap.Set(idx, false)
	}
	return nil
}

func allFF(b []byte) bool {
	for _, v := range b {
		if v != 0xFF {
			return false
		}
	}
	return true
}

// Marshal concatenates the encoded bytes of every PEB in current
// order. Callers reconstruct the enclosing blob by prepending
// blob[:StartOffset] and appending blob[EndOffset:].
func (c *Container) Marshal() []byte {
	out := make([]byte, 0, len(c.Blocks)*c.BlockSize)
	for _, p := range c.Blocks {
		out = append(out, p.Marshal()...)
	}
	return out
}
