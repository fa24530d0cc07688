// Package bitstream provides a cursor over an immutable byte buffer with
// absolute seeking and typed big-endian fixed-width reads. It never
// allocates on read; returned slices borrow from the underlying buffer.
package bitstream

import (
	"encoding/binary"
	"fmt"

	"github.com/DHCL-LLC/tamashii-go/pkg/tamerr"
)

// Reader is a byte-aligned cursor over a fixed buffer.
type Reader struct {
	buf []byte
	pos int
}

// New wraps buf in a Reader starting at offset 0.
func New(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Len reports the total length of the wrapped buffer.
func (r *Reader) Len() int {
	return len(r.buf)
}

// Tell returns the current absolute cursor position.
func (r *Reader) Tell() int {
	return r.pos
}

// Seek moves the cursor to an absolute offset. It does not validate
// that the offset lies within the buffer; that is checked on next read.
func (r *Reader) Seek(absolute int) {
	r.pos = absolute
}

func (r *Reader) require(n int) error {
	if r.pos < 0 || n < 0 || r.pos+n > len(r.buf) {
		return fmt.Errorf("read %d bytes at offset %d exceeds buffer length %d: %w", n, r.pos, len(r.buf), tamerr.ErrTruncatedInput)
	}
	return nil
}

// Bytes reads n raw bytes, advancing the cursor. The returned slice
// borrows from the underlying buffer and must not be mutated in place
// if the caller intends to keep reading the original image read-only.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if err := r.require(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// U8 reads a single byte.
func (r *Reader) U8() (uint8, error) {
	b, err := r.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// U16 reads a big-endian uint16.
func (r *Reader) U16() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// U32 reads a big-endian uint32.
func (r *Reader) U32() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// U64 reads a big-endian uint64.
func (r *Reader) U64() (uint64, error) {
	b, err := r.Bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// PeekBytes reads n bytes at an absolute offset without moving the
// cursor.
func (r *Reader) PeekBytes(absolute, n int) ([]byte, error) {
	save := r.pos
	r.pos = absolute
	b, err := r.Bytes(n)
	r.pos = save
	return b, err
}
