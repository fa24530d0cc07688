package deviceimage

import (
	"crypto/sha1"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DHCL-LLC/tamashii-go/pkg/tamerr"
)

func buildImage(t *testing.T, headerSize, imageSize uint32, image []byte) []byte {
	t.Helper()
	out := make([]byte, 0, headerSize+imageSize)
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], Magic)
	out = append(out, tmp[:]...)
	binary.BigEndian.PutUint32(tmp[:], headerSize)
	out = append(out, tmp[:]...)
	binary.BigEndian.PutUint32(tmp[:], imageSize)
	out = append(out, tmp[:]...)
	sum := sha1.Sum(image)
	out = append(out, sum[:]...)
	for uint32(len(out)) < headerSize {
		out = append(out, 0xFF)
	}
	out = append(out, image...)
	return out
}

func TestDecodeRoundTrip(t *testing.T) {
	image := make([]byte, 1024)
	for i := range image {
		image[i] = byte(i)
	}
	raw := buildImage(t, HeaderSize, uint32(len(image)), image)

	img, err := Decode(raw)
	require.NoError(t, err)
	require.True(t, img.IsValid())
	require.Equal(t, raw, img.Marshal())
}

func TestDecodeNotADeviceImage(t *testing.T) {
	_, err := Decode(make([]byte, 64))
	require.ErrorIs(t, err, tamerr.ErrNotADeviceImage)
}

func TestUImageSplice(t *testing.T) {
	image := make([]byte, 1024)
	for i := range image {
		image[i] = 0xAB
	}

	const uimageOffset = 256
	const ihSize = 100
	uHeader := make([]byte, uImageHeaderSize)
	binary.BigEndian.PutUint32(uHeader[uImageSizeFieldOffset:], ihSize)
	body := make([]byte, ihSize)
	for i := range body {
		body[i] = 0x11
	}
	copy(image[uimageOffset:], uHeader)
	copy(image[uimageOffset+uImageHeaderSize:], body)

	raw := buildImage(t, HeaderSize, uint32(len(image)), image)
	img, err := Decode(raw)
	require.NoError(t, err)

	absolutePos := int(HeaderSize) + uimageOffset
	extracted, err := img.ExtractUImage(absolutePos)
	require.NoError(t, err)
	require.Len(t, extracted, uImageHeaderSize+ihSize)

	newBody := make([]byte, ihSize)
	for i := range newBody {
		newBody[i] = 0x22
	}
	newUImage := make([]byte, uImageHeaderSize+ihSize)
	binary.BigEndian.PutUint32(newUImage[uImageSizeFieldOffset:], ihSize)
	copy(newUImage[uImageHeaderSize:], newBody)

	beforeTail := append([]byte(nil), img.Image[uimageOffset+uImageHeaderSize+ihSize:]...)

	require.NoError(t, img.Put(newUImage, absolutePos))
	img.RefreshSHA1()

	require.True(t, img.IsValid())
	require.Equal(t, newUImage, img.Image[uimageOffset:uimageOffset+len(newUImage)])
	require.Equal(t, beforeTail, img.Image[uimageOffset+len(newUImage):])
}

func TestPutOutOfRange(t *testing.T) {
	image := make([]byte, 16)
	raw := buildImage(t, HeaderSize, uint32(len(image)), image)
	img, err := Decode(raw)
	require.NoError(t, err)

	err = img.Put([]byte{1, 2, 3}, int(HeaderSize)+1000)
	require.ErrorIs(t, err, tamerr.ErrPutOutOfRange)
}

func TestExtractFDT(t *testing.T) {
	image := make([]byte, 512)
	fdtSize := 128
	binary.BigEndian.PutUint32(image[64+fdtSizeFieldOffset:], uint32(fdtSize))
	raw := buildImage(t, HeaderSize, uint32(len(image)), image)
	img, err := Decode(raw)
	require.NoError(t, err)

	fdt, err := img.ExtractFDT(int(HeaderSize) + 64)
	require.NoError(t, err)
	require.Len(t, fdt, fdtSize)
}
