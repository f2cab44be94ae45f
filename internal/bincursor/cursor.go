package bincursor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"golang.org/x/text/encoding/unicode"
)

// ErrShortRead reports a read past the end of the buffer.
var ErrShortRead = errors.New("read past end of data")

// Cursor reads fixed-width values from a byte slice. The zero value reads
// from an empty buffer.
type Cursor struct {
	data []byte
	pos  int
}

// New returns a cursor positioned at the start of data.
func New(data []byte) *Cursor {
	return &Cursor{data: data}
}

// FromReader reads r fully, refusing inputs larger than limit bytes when
// limit is positive.
func FromReader(r io.Reader, limit int64) (*Cursor, error) {
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("input exceeds %d bytes", limit)
	}
	return New(data), nil
}

// Tell returns the current offset.
func (c *Cursor) Tell() int { return c.pos }

// Len returns the total buffer size.
func (c *Cursor) Len() int { return len(c.data) }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.data) - c.pos }

// Seek moves to an absolute offset.
func (c *Cursor) Seek(offset int) error {
	if offset < 0 || offset > len(c.data) {
		return fmt.Errorf("seek to %d of %d: %w", offset, len(c.data), ErrShortRead)
	}
	c.pos = offset
	return nil
}

// Skip advances n bytes.
func (c *Cursor) Skip(n int) error {
	_, err := c.take(n)
	return err
}

// Peek returns up to n bytes from the current offset without advancing.
func (c *Cursor) Peek(n int) []byte {
	end := min(c.pos+n, len(c.data))
	return c.data[c.pos:end]
}

func (c *Cursor) take(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.data) {
		return nil, fmt.Errorf("read %d bytes at offset %d of %d: %w", n, c.pos, len(c.data), ErrShortRead)
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *Cursor) Uint8() (uint8, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Cursor) Uint16() (uint16, error) {
	b, err := c.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *Cursor) Uint32() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *Cursor) Uint64() (uint64, error) {
	b, err := c.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (c *Cursor) Float32() (float32, error) {
	v, err := c.Uint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// Bytes returns a copy of the next n bytes.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	b, err := c.take(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// String reads n bytes as text. Invalid UTF-8 is kept byte for byte.
func (c *Cursor) String(n int) (string, error) {
	b, err := c.take(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// StringUTF16 reads n bytes of UTF-16LE text.
func (c *Cursor) StringUTF16(n int) (string, error) {
	b, err := c.take(n)
	if err != nil {
		return "", err
	}
	return DecodeUTF16LE(b)
}

// UnixTime reads a 32-bit count of seconds since the Unix epoch. Zero
// decodes as the zero time.
func (c *Cursor) UnixTime() (time.Time, error) {
	v, err := c.Uint32()
	if err != nil {
		return time.Time{}, err
	}
	return UnixSeconds(int64(v)), nil
}

// UnixSeconds converts seconds since the epoch to UTC, mapping 0 to the zero time.
func UnixSeconds(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0).UTC()
}

// DecodeUTF16LE decodes UTF-16LE bytes, honouring a leading byte order mark.
func DecodeUTF16LE(b []byte) (string, error) {
	dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	out, err := dec.Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode utf-16: %w", err)
	}
	return string(out), nil
}
