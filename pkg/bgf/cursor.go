package bgf

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"slices"
	"unicode/utf8"

	"github.com/matzehuels/bgf/pkg/errors"
)

// eagerLimit is the largest read that is allocated up front when the
// source size is unknown. Longer runs grow as bytes arrive so a corrupt
// length prefix fails on EOF instead of on allocation.
const eagerLimit = 1 << 20

// chunkBytes is the scratch size used by the typed block readers.
const chunkBytes = 64 << 10

// Cursor is a sequential, bounds-checked reader over a BGF byte stream.
//
// It never reads ahead of what a caller asks for and never seeks. Pass 1
// and pass 2 share a single Cursor so the stream position after the header
// catalog is exactly the first byte of payload data.
type Cursor struct {
	r     io.Reader
	order binary.ByteOrder
	width int
	off   int64
	size  int64 // total bytes reachable from offset 0, or -1
	buf   [8]byte

	scratch []byte
}

// lener is implemented by in-memory readers such as *bytes.Reader.
type lener interface {
	Len() int
}

// NewCursor wraps r. Sources that report their remaining length
// (bytes.Reader, strings.Reader, bytes.Buffer) get early truncation
// checks; use Limit for files.
func NewCursor(r io.Reader, order binary.ByteOrder, width int) (*Cursor, error) {
	if err := errors.ValidatePointerWidth(width); err != nil {
		return nil, err
	}
	if order == nil {
		order = binary.LittleEndian
	}
	c := &Cursor{r: r, order: order, width: width, size: -1}
	if l, ok := r.(lener); ok {
		c.size = int64(l.Len())
	}
	return c, nil
}

// Limit declares the total number of bytes available from the current
// position, enabling truncation checks before allocation.
func (c *Cursor) Limit(n int64) {
	c.size = c.off + n
}

// Offset returns the number of bytes consumed so far.
func (c *Cursor) Offset() int64 { return c.off }

// Remaining returns the bytes left in the source, or -1 if unknown.
func (c *Cursor) Remaining() int64 {
	if c.size < 0 {
		return -1
	}
	return c.size - c.off
}

// PointerWidth returns the configured size_t width in bytes.
func (c *Cursor) PointerWidth() int { return c.width }

// ByteOrder returns the configured byte order.
func (c *Cursor) ByteOrder() binary.ByteOrder { return c.order }

// Need fails with TRUNCATED_INPUT if the source is known to hold fewer
// than n more bytes. It is a no-op for sources of unknown size.
func (c *Cursor) Need(n uint64, what string) error {
	if c.size < 0 {
		return nil
	}
	if left := c.size - c.off; left < 0 || n > uint64(left) {
		return errors.Wrap(errors.ErrCodeTruncatedInput, io.ErrUnexpectedEOF,
			"%s needs %d bytes, %d available; check byte order / pointer width", what, n, max(left, 0)).AtOffset(c.off)
	}
	return nil
}

// ReadI32 reads a signed 32-bit integer.
func (c *Cursor) ReadI32() (int32, error) {
	v, err := c.ReadU32()
	return int32(v), err
}

// ReadU32 reads an unsigned 32-bit integer.
func (c *Cursor) ReadU32() (uint32, error) {
	if err := c.fill(4, "u32"); err != nil {
		return 0, err
	}
	return c.order.Uint32(c.buf[:4]), nil
}

// ReadSize reads a size_t field using the configured pointer width.
func (c *Cursor) ReadSize() (uint64, error) {
	if err := c.fill(c.width, "size_t"); err != nil {
		return 0, err
	}
	if c.width == 4 {
		return uint64(c.order.Uint32(c.buf[:4])), nil
	}
	return c.order.Uint64(c.buf[:8]), nil
}

// ReadString reads a u32 length prefix followed by that many UTF-8 bytes.
func (c *Cursor) ReadString() (string, error) {
	n, err := c.ReadU32()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	start := c.off
	b, err := c.ReadBlock(1, uint64(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errors.New(errors.ErrCodeInvalidEncoding, "string of %d bytes is not valid UTF-8", n).AtOffset(start)
	}
	return string(b), nil
}

// ReadBlock reads count*elemSize raw bytes.
func (c *Cursor) ReadBlock(elemSize int, count uint64) ([]byte, error) {
	n, err := blockBytes(elemSize, count)
	if err != nil {
		return nil, err.AtOffset(c.off)
	}
	return c.readBytes(n, "block")
}

// ReadFloat64s fills dst with consecutive 64-bit floats.
func (c *Cursor) ReadFloat64s(dst []float64) error {
	return c.readWords(len(dst), 8, "f64 block", func(i int, b []byte) {
		dst[i] = math.Float64frombits(c.order.Uint64(b))
	})
}

// ReadSizes fills dst with consecutive size_t values.
func (c *Cursor) ReadSizes(dst []uint64) error {
	if c.width == 4 {
		return c.readWords(len(dst), 4, "size_t block", func(i int, b []byte) {
			dst[i] = uint64(c.order.Uint32(b))
		})
	}
	return c.readWords(len(dst), 8, "size_t block", func(i int, b []byte) {
		dst[i] = c.order.Uint64(b)
	})
}

// appendFloat64s reads n floats onto dst, growing it at most one chunk at a
// time beyond its capacity.
func (c *Cursor) appendFloat64s(dst []float64, n int) ([]float64, error) {
	const per = chunkBytes / 8
	for n > 0 {
		k := min(n, per)
		l := len(dst)
		dst = slices.Grow(dst, k)[:l+k]
		if err := c.ReadFloat64s(dst[l:]); err != nil {
			return nil, err
		}
		n -= k
	}
	return dst, nil
}

// readWords streams count fixed-size words through a bounded scratch buffer.
func (c *Cursor) readWords(count, size int, what string, put func(int, []byte)) error {
	if count == 0 {
		return nil
	}
	if err := c.Need(uint64(count)*uint64(size), what); err != nil {
		return err
	}
	per := chunkBytes / size
	if need := min(count, per) * size; cap(c.scratch) < need {
		c.scratch = make([]byte, need)
	}
	for i := 0; i < count; {
		k := min(count-i, per)
		b := c.scratch[:k*size]
		start := c.off
		m, err := io.ReadFull(c.r, b)
		c.off += int64(m)
		if err != nil {
			return c.readErr(err, start, uint64(len(b)), what)
		}
		for j := 0; j < k; j++ {
			put(i+j, b[j*size:(j+1)*size])
		}
		i += k
	}
	return nil
}

func (c *Cursor) fill(n int, what string) error {
	start := c.off
	m, err := io.ReadFull(c.r, c.buf[:n])
	c.off += int64(m)
	if err != nil {
		return c.readErr(err, start, uint64(n), what)
	}
	return nil
}

func (c *Cursor) readBytes(n uint64, what string) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	if err := c.Need(n, what); err != nil {
		return nil, err
	}
	start := c.off
	if c.size >= 0 || n <= eagerLimit {
		b := make([]byte, n)
		m, err := io.ReadFull(c.r, b)
		c.off += int64(m)
		if err != nil {
			return nil, c.readErr(err, start, n, what)
		}
		return b, nil
	}
	var buf bytes.Buffer
	m, err := io.CopyN(&buf, c.r, int64(n))
	c.off += m
	if err != nil {
		return nil, c.readErr(err, start, n, what)
	}
	return buf.Bytes(), nil
}

func (c *Cursor) readErr(err error, start int64, n uint64, what string) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.Wrap(errors.ErrCodeTruncatedInput, io.ErrUnexpectedEOF,
			"%s needs %d bytes, got %d", what, n, c.off-start).AtOffset(start)
	}
	return errors.Wrap(errors.ErrCodeInternal, err, "read %s", what).AtOffset(start)
}

// blockBytes computes elemSize*count, rejecting products that cannot be
// addressed.
func blockBytes(elemSize int, count uint64) (uint64, *errors.Error) {
	if elemSize <= 0 {
		return 0, errors.New(errors.ErrCodeInternal, "invalid element size %d", elemSize)
	}
	if count > uint64(math.MaxInt)/uint64(elemSize) {
		return 0, errors.New(errors.ErrCodeCorruptContainer, "block of %d x %d bytes is not addressable; check byte order / pointer width", count, elemSize)
	}
	return count * uint64(elemSize), nil
}
