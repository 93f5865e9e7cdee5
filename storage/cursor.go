package storage

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/exp/constraints"
)

// SeekKind selects the origin of a Seek.
type SeekKind uint8

const (
	SeekAbsolute SeekKind = iota
	SeekRelative
	// Page-semantic origins, resolved by Page.Seek.
	SeekHeader
	SeekPayload
	SeekFree
)

func (k SeekKind) String() string {
	switch k {
	case SeekAbsolute:
		return "absolute"
	case SeekRelative:
		return "relative"
	case SeekHeader:
		return "header"
	case SeekPayload:
		return "payload"
	case SeekFree:
		return "free"
	default:
		return "unknown"
	}
}

// Cursor is a seekable view over a fixed-capacity byte buffer.
// All integers are encoded big-endian.
type Cursor struct {
	data []byte
	pos  int
}

func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

func (c *Cursor) Bytes() []byte {
	return c.data
}

func (c *Cursor) Len() int {
	return len(c.data)
}

func (c *Cursor) Position() int {
	return c.pos
}

func (c *Cursor) Remaining() int {
	return len(c.data) - c.pos
}

// Seek moves the cursor and returns the new absolute position.
// The cursor never leaves [0, Len()].
func (c *Cursor) Seek(kind SeekKind, value int) (int, error) {
	var target int
	switch kind {
	case SeekAbsolute:
		target = value
	case SeekRelative:
		target = c.pos + value
	default:
		return c.pos, fmt.Errorf("%w: seek kind %s requires a page", ErrRange, kind)
	}
	return c.seekTo(target)
}

func (c *Cursor) seekTo(target int) (int, error) {
	if target < 0 || target > len(c.data) {
		return c.pos, fmt.Errorf("%w: seek to %d, capacity %d", ErrRange, target, len(c.data))
	}
	c.pos = target
	return c.pos, nil
}

// Read copies up to len(p) bytes and returns the count transferred.
func (c *Cursor) Read(p []byte) int {
	n := copy(p, c.data[c.pos:])
	c.pos += n
	return n
}

// Write copies up to len(p) bytes and returns the count transferred.
func (c *Cursor) Write(p []byte) int {
	n := copy(c.data[c.pos:], p)
	c.pos += n
	return n
}

func (c *Cursor) ReadFull(p []byte) error {
	if n := c.Read(p); n != len(p) {
		return fmt.Errorf("%w: read %d of %d bytes at %d", ErrShortRead, n, len(p), c.pos-n)
	}
	return nil
}

func (c *Cursor) WriteFull(p []byte) error {
	if n := c.Write(p); n != len(p) {
		return fmt.Errorf("%w: wrote %d of %d bytes at %d", ErrShortWrite, n, len(p), c.pos-n)
	}
	return nil
}

func readUint[T constraints.Unsigned](c *Cursor, size int, decode func([]byte) T) (T, error) {
	var zero T
	if c.Remaining() < size {
		return zero, fmt.Errorf("%w: need %d bytes at %d, have %d", ErrShortRead, size, c.pos, c.Remaining())
	}
	v := decode(c.data[c.pos : c.pos+size])
	c.pos += size
	return v, nil
}

func writeUint[T constraints.Unsigned](c *Cursor, size int, v T, encode func([]byte, T)) error {
	if c.Remaining() < size {
		return fmt.Errorf("%w: need %d bytes at %d, have %d", ErrShortWrite, size, c.pos, c.Remaining())
	}
	encode(c.data[c.pos:c.pos+size], v)
	c.pos += size
	return nil
}

func (c *Cursor) ReadUint8() (uint8, error) {
	return readUint(c, UInt8Size, func(b []byte) uint8 { return b[0] })
}

func (c *Cursor) ReadUint16() (uint16, error) {
	return readUint(c, UInt16Size, binary.BigEndian.Uint16)
}

func (c *Cursor) ReadUint32() (uint32, error) {
	return readUint(c, UInt32Size, binary.BigEndian.Uint32)
}

func (c *Cursor) ReadUint64() (uint64, error) {
	return readUint(c, UInt64Size, binary.BigEndian.Uint64)
}

func (c *Cursor) WriteUint8(v uint8) error {
	return writeUint(c, UInt8Size, v, func(b []byte, v uint8) { b[0] = v })
}

func (c *Cursor) WriteUint16(v uint16) error {
	return writeUint(c, UInt16Size, v, binary.BigEndian.PutUint16)
}

func (c *Cursor) WriteUint32(v uint32) error {
	return writeUint(c, UInt32Size, v, binary.BigEndian.PutUint32)
}

func (c *Cursor) WriteUint64(v uint64) error {
	return writeUint(c, UInt64Size, v, binary.BigEndian.PutUint64)
}

// Copy moves up to n bytes from src to dst, bounded by what src holds and dst can take.
// Fewer than n bytes moved is reported as ErrShortCopy along with the count.
func Copy(dst, src *Cursor, n int) (int, error) {
	count := min(n, src.Remaining(), dst.Remaining())
	if count < 0 {
		count = 0
	}
	copy(dst.data[dst.pos:dst.pos+count], src.data[src.pos:src.pos+count])
	src.pos += count
	dst.pos += count
	if count < n {
		return count, fmt.Errorf("%w: copied %d of %d bytes", ErrShortCopy, count, n)
	}
	return count, nil
}
