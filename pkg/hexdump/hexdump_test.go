package hexdump

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDump(t *testing.T) {
	var buf bytes.Buffer
	data := []byte("Hello, World!")
	require.NoError(t, Dump(&buf, data, 0x100))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "00000100"))
	require.Contains(t, out, "Hello, World!")
}

func TestBytesHumanize(t *testing.T) {
	require.Equal(t, "512 B", Bytes(512))
	require.Equal(t, "1.0 KiB", Bytes(1024))
	require.Equal(t, "4.0 MiB", Bytes(4*1024*1024))
}
