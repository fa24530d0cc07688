package bootargs

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildEnv() []byte {
	entries := [][]byte{
		[]byte("panel_loadaddr=0x80000000"),
		[]byte("panel_loadaddr_fdt=0x80100000"),
		[]byte("panel_loadaddr_kernel=0x80200000"),
		[]byte("panel_loadaddr_ramdisk=0x80400000"),
	}
	var out bytes.Buffer
	out.WriteString("...\x00bootargs=...\x00")
	for i, e := range entries {
		if i > 0 {
			out.WriteByte(0x00)
		}
		out.Write(e)
	}
	out.Write([]byte{0x00, 0x00})
	out.WriteString("...")
	return out.Bytes()
}

func TestDecodeAndPositions(t *testing.T) {
	blob := buildEnv()
	args, err := Decode(blob)
	require.NoError(t, err)

	fdt, err := args.FDTPosition()
	require.NoError(t, err)
	require.Equal(t, uint64(0x100000), fdt)

	kernel, err := args.KernelPosition()
	require.NoError(t, err)
	require.Equal(t, uint64(0x200000), kernel)

	ramdisk, err := args.RAMdiskPosition()
	require.NoError(t, err)
	require.Equal(t, uint64(0x400000), ramdisk)
}

func TestDecodeNoMarker(t *testing.T) {
	_, err := Decode([]byte("no marker here"))
	require.Error(t, err)
}

func TestValueFirstMatchWinsOnDuplicateSuffix(t *testing.T) {
	var out bytes.Buffer
	out.WriteString("...\x00bootargs=...\x00")
	out.WriteString("panel_loadaddr=0x80000000")
	out.WriteByte(0x00)
	out.WriteString("other_loadaddr=0x90000000") // later duplicate suffix
	out.Write([]byte{0x00, 0x00})
	out.WriteString("...")

	args, err := Decode(out.Bytes())
	require.NoError(t, err)

	base, err := args.BasePosition()
	require.NoError(t, err)
	require.Equal(t, uint64(0x80000000), base, "first entry with a matching suffix must win, in document order")
}
