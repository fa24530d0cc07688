// Package deviceimage implements the vendor device-image container:
// a fixed 32-byte header (magic, header size, image size, SHA-1) plus
// an opaque payload, with sub-payload extraction for the flattened
// device tree and uImage-wrapped kernel/RAMdisk blobs it carries.
package deviceimage

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"

	"github.com/DHCL-LLC/tamashii-go/pkg/bitstream"
	"github.com/DHCL-LLC/tamashii-go/pkg/tamerr"
)

const (
	// Magic is the big-endian device-image header signature.
	Magic uint32 = 0x8E73ED8A

	// HeaderSize is the fixed on-flash size of the header.
	HeaderSize = 32

	sha1Size = 20

	// fdtSizeFieldOffset is the flattened device tree's own
	// totalsize field offset, relative to the start of the FDT.
	fdtSizeFieldOffset = 4

	// uImageHeaderSize is U-Boot's fixed legacy image header length.
	uImageHeaderSize = 64

	// uImageSizeFieldOffset is the ih_size field's offset within the
	// uImage header.
	uImageSizeFieldOffset = 12
)

// Header is the 32-byte device-image header.
type Header struct {
	Magic      uint32
	HeaderSize uint32
	ImageSize  uint32
	ImageSHA1  [sha1Size]byte
}

// Image is a decoded device image: its header plus the opaque image
// payload that follows it.
type Image struct {
	Header Header
	Image  []byte
}

// Decode parses a device image out of data. If the header magic does
// not match, it returns ErrNotADeviceImage so callers can skip the
// volume rather than treat this as fatal.
func Decode(data []byte) (*Image, error) {
	r := bitstream.New(data)

	magic, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("deviceimage: magic: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("deviceimage: magic 0x%08X: %w", magic, tamerr.ErrNotADeviceImage)
	}
	headerSize, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("deviceimage: header_size: %w", err)
	}
	imageSize, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("deviceimage: image_size: %w", err)
	}
	shaBytes, err := r.Bytes(sha1Size)
	if err != nil {
		return nil, fmt.Errorf("deviceimage: image_sha1: %w", err)
	}

	var hdr Header
	hdr.Magic = magic
	hdr.HeaderSize = headerSize
	hdr.ImageSize = imageSize
	copy(hdr.ImageSHA1[:], shaBytes)

	r.Seek(int(headerSize))
	image, err := r.Bytes(int(imageSize))
	if err != nil {
		return nil, fmt.Errorf("deviceimage: image payload: %w", err)
	}

	return &Image{Header: hdr, Image: image}, nil
}

// IsValid reports whether the stored SHA-1 matches a fresh digest of
// Image.
func (im *Image) IsValid() bool {
	sum := sha1.Sum(im.Image)
	return sum == im.Header.ImageSHA1
}

// RefreshSHA1 recomputes and stores the SHA-1 digest of Image.
func (im *Image) RefreshSHA1() {
	im.Header.ImageSHA1 = sha1.Sum(im.Image)
}

// Put splices data into the image at absolutePosition (a position in
// the same coordinate space as Header.HeaderSize, i.e. including the
// header). The tail of the existing image beyond the replaced span is
// preserved only if it still exists; data that extends past the
// current image length simply grows it.
func (im *Image) Put(data []byte, absolutePosition int) error {
	start := absolutePosition - int(im.Header.HeaderSize)
	if start < 0 || start > len(im.Image) {
		return fmt.Errorf("deviceimage: put at %d (image-relative %d, image length %d): %w", absolutePosition, start, len(im.Image), tamerr.ErrPutOutOfRange)
	}
	end := start + len(data)

	out := make([]byte, 0, end)
	out = append(out, im.Image[:start]...)
	out = append(out, data...)
	if end < len(im.Image) {
		out = append(out, im.Image[end:]...)
	}
	im.Image = out
	im.Header.ImageSize = uint32(len(im.Image))
	return nil
}

// Marshal encodes the header (padded with 0xFF up to HeaderSize) then
// the image bytes.
func (im *Image) Marshal() []byte {
	out := make([]byte, 0, int(im.Header.HeaderSize)+len(im.Image))
	var tmp [4]byte

	binary.BigEndian.PutUint32(tmp[:], im.Header.Magic)
	out = append(out, tmp[:]...)
	binary.BigEndian.PutUint32(tmp[:], im.Header.HeaderSize)
	out = append(out, tmp[:]...)
	binary.BigEndian.PutUint32(tmp[:], im.Header.ImageSize)
	out = append(out, tmp[:]...)
	out = append(out, im.Header.ImageSHA1[:]...)

	for len(out) < int(im.Header.HeaderSize) {
		out = append(out, 0xFF)
	}
	out = append(out, im.Image...)
	return out
}

// ExtractFDT reads the flattened device tree that begins at
// absolutePosition: its own totalsize field (big-endian u32 at offset
// 4 of the FDT) bounds the returned slice.
func (im *Image) ExtractFDT(absolutePosition int) ([]byte, error) {
	p := absolutePosition - int(im.Header.HeaderSize)
	size, err := im.readU32At(p + fdtSizeFieldOffset)
	if err != nil {
		return nil, fmt.Errorf("deviceimage: fdt size field: %w", err)
	}
	return im.slice(p, int(size))
}

// ExtractUImage reads a U-Boot legacy image (kernel or RAMdisk) that
// begins at absolutePosition: its own ih_size field (big-endian u32
// at offset 12 of the uImage header) plus the fixed 64-byte header
// bounds the returned slice.
func (im *Image) ExtractUImage(absolutePosition int) ([]byte, error) {
	p := absolutePosition - int(im.Header.HeaderSize)
	size, err := im.readU32At(p + uImageSizeFieldOffset)
	if err != nil {
		return nil, fmt.Errorf("deviceimage: uimage ih_size field: %w", err)
	}
	return im.slice(p, int(size)+uImageHeaderSize)
}

func (im *Image) readU32At(offset int) (uint32, error) {
	if offset < 0 || offset+4 > len(im.Image) {
		return 0, fmt.Errorf("offset %d out of range (image length %d): %w", offset, len(im.Image), tamerr.ErrTruncatedInput)
	}
	return binary.BigEndian.Uint32(im.Image[offset : offset+4]), nil
}

func (im *Image) slice(start, length int) ([]byte, error) {
	end := start + length
	if start < 0 || length < 0 || end > len(im.Image) {
		return nil, fmt.Errorf("slice [%d:%d] out of range (image length %d): %w", start, end, len(im.Image), tamerr.ErrTruncatedInput)
	}
	return im.Image[start:end], nil
}
