// Package hexdump provides the ambient hex-dump and human-readable
// size formatting helpers spec.md §1 calls out as thin, non-core
// collaborators (grounded on utilities.py's to_hex_dump and
// to_readable_size), kept here as small, separately-tested leaves
// rather than inlined into the driver.
package hexdump

import (
	"fmt"
	"io"
)

// Dump writes a classic offset/hex/ASCII-gutter hex dump of data to w,
// sixteen bytes per line, with displayed offsets starting at
// baseOffset.
func Dump(w io.Writer, data []byte, baseOffset int) error {
	const width = 16
	for off := 0; off < len(data); off += width {
		end := off + width
		if end > len(data) {
			end = len(data)
		}
		line := data[off:end]

		if _, err := fmt.Fprintf(w, "%08X  ", baseOffset+off); err != nil {
			return err
		}
		for i := 0; i < width; i++ {
			if i < len(line) {
				if _, err := fmt.Fprintf(w, "%02X ", line[i]); err != nil {
					return err
				}
			} else {
				if _, err := fmt.Fprint(w, "   "); err != nil {
					return err
				}
			}
			if i == width/2-1 {
				if _, err := fmt.Fprint(w, " "); err != nil {
					return err
				}
			}
		}
		if _, err := fmt.Fprint(w, " |"); err != nil {
			return err
		}
		for _, b := range line {
			if b >= 0x20 && b < 0x7F {
				if _, err := fmt.Fprintf(w, "%c", b); err != nil {
					return err
				}
			} else {
				if _, err := fmt.Fprint(w, "."); err != nil {
					return err
				}
			}
		}
		if _, err := fmt.Fprintln(w, "|"); err != nil {
			return err
		}
	}
	return nil
}

// Bytes formats a byte count as a human-readable size using binary
// (1024-based) units, e.g. "4.0 MiB".
func Bytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	units := []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}
	return fmt.Sprintf("%.1f %s", float64(n)/float64(div), units[exp])
}
