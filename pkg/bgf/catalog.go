package bgf

import (
	"math"

	"github.com/matzehuels/bgf/pkg/errors"
)

// Catalog is the result of pass 1: the container version and every graph
// header in file order.
type Catalog struct {
	FormatVersion int32
	Headers       []Header

	// PayloadOffset is the cursor offset of the first pass-2 byte.
	PayloadOffset int64
}

// Len returns the number of graphs in the container.
func (c *Catalog) Len() int { return len(c.Headers) }

// PayloadOffsets returns the absolute start offset of each graph's pass-2
// region plus a final entry marking the end of the container payload.
func (c *Catalog) PayloadOffsets(width int) ([]int64, error) {
	offs := make([]int64, len(c.Headers)+1)
	offs[0] = c.PayloadOffset
	for i := range c.Headers {
		size, ok := c.Headers[i].PayloadSize(width)
		if !ok || size > uint64(math.MaxInt64-offs[i]) {
			return nil, errors.New(errors.ErrCodeCorruptContainer,
				"payload size overflows; check byte order / pointer width").InGraph(c.Headers[i].Name)
		}
		offs[i+1] = offs[i] + int64(size)
	}
	return offs, nil
}

// ReadCatalog runs pass 1. It reads the (format_version, graph_count) pair
// and then exactly graph_count headers, consuming no payload bytes. On
// success the cursor sits at the first byte of pass-2 data.
func ReadCatalog(c *Cursor) (*Catalog, error) {
	version, err := c.ReadI32()
	if err != nil {
		return nil, err
	}
	countOff := c.Offset()
	count, err := c.ReadI32()
	if err != nil {
		return nil, err
	}
	if err := errors.ValidateGraphCount(count); err != nil {
		return nil, err.(*errors.Error).AtOffset(countOff)
	}

	cat := &Catalog{
		FormatVersion: version,
		Headers:       make([]Header, 0, min(int(count), 1<<16)),
	}
	for i := 0; i < int(count); i++ {
		h, err := readHeader(c)
		if err != nil {
			return nil, err
		}
		cat.Headers = append(cat.Headers, h)
	}
	cat.PayloadOffset = c.Offset()
	return cat, nil
}

// readHeader reads one header in wire order: name, type, node count, node
// feature names, edge count, edge feature names.
func readHeader(c *Cursor) (Header, error) {
	var h Header
	var err error

	if h.Name, err = c.ReadString(); err != nil {
		return h, err
	}
	if h.GraphType, err = c.ReadI32(); err != nil {
		return h, errors.WithGraph(err, h.Name)
	}
	if h.NodeCount, err = readCount(c, "node count"); err != nil {
		return h, errors.WithGraph(err, h.Name)
	}
	if h.NodeFeatureCount, h.NodeFeatureNames, err = readNames(c); err != nil {
		return h, errors.WithGraph(err, h.Name)
	}
	if h.EdgeCount, err = readCount(c, "edge count"); err != nil {
		return h, errors.WithGraph(err, h.Name)
	}
	if h.EdgeFeatureCount, h.EdgeFeatureNames, err = readNames(c); err != nil {
		return h, errors.WithGraph(err, h.Name)
	}
	return h, nil
}

// readCount reads a size_t count that must fit a non-negative int.
func readCount(c *Cursor, what string) (uint64, error) {
	off := c.Offset()
	n, err := c.ReadSize()
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt {
		return 0, errors.New(errors.ErrCodeCorruptContainer, "%s %d is not representable; check byte order / pointer width", what, n).AtOffset(off)
	}
	return n, nil
}

// readNames reads a u32 count followed by that many strings.
func readNames(c *Cursor) (uint32, []string, error) {
	n, err := c.ReadU32()
	if err != nil {
		return 0, nil, err
	}
	// Every name takes at least its 4-byte length prefix.
	if err := c.Need(uint64(n)*4, "feature names"); err != nil {
		return 0, nil, err
	}
	if n == 0 {
		return 0, nil, nil
	}
	hint := int(n)
	if c.Remaining() < 0 {
		hint = min(hint, eagerLimit/16)
	}
	names := make([]string, 0, hint)
	for i := uint32(0); i < n; i++ {
		name, err := c.ReadString()
		if err != nil {
			return 0, nil, err
		}
		names = append(names, name)
	}
	return n, names, nil
}
