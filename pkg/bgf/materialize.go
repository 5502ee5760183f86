package bgf

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/bgf/pkg/errors"
)

// Materialize runs pass 2 over the cursor that produced cat. It requires
// the complete catalog and a cursor still positioned at the first payload
// byte, and returns one record per header in header order.
//
// The wire order inside a graph is fixed: the node feature block, then for
// every edge its (u, v) pair immediately followed by its feature row.
func Materialize(c *Cursor, cat *Catalog) ([]*Record, error) {
	if cat == nil {
		return nil, errors.New(errors.ErrCodeInternal, "pass 2 requires a header catalog")
	}
	if c.Offset() != cat.PayloadOffset {
		return nil, errors.New(errors.ErrCodeInternal,
			"cursor at offset %d, payload starts at %d", c.Offset(), cat.PayloadOffset)
	}

	records := make([]*Record, len(cat.Headers))
	for i := range cat.Headers {
		rec, err := materializeOne(c, &cat.Headers[i], cat.FormatVersion)
		if err != nil {
			return nil, errors.WithGraph(err, cat.Headers[i].Name)
		}
		records[i] = rec
	}
	return records, nil
}

// MaterializeAt runs pass 2 with up to opts.Workers graphs decoded
// concurrently. Each graph's region is located from the header sizes, so
// every worker reads its own section front to back without seeking. size is
// the number of bytes r holds, or -1 if unknown.
func MaterializeAt(ctx context.Context, r io.ReaderAt, size int64, cat *Catalog, opts Options) ([]*Record, error) {
	if cat == nil {
		return nil, errors.New(errors.ErrCodeInternal, "pass 2 requires a header catalog")
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	offs, err := cat.PayloadOffsets(opts.PointerWidth)
	if err != nil {
		return nil, err
	}

	if end := offs[len(offs)-1]; size >= 0 && end > size {
		return nil, errors.Wrap(errors.ErrCodeTruncatedInput, io.ErrUnexpectedEOF,
			"graph payloads need %d bytes, %d available; check byte order / pointer width", end, size).AtOffset(cat.PayloadOffset)
	}

	records := make([]*Record, len(cat.Headers))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i := range cat.Headers {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c := &Cursor{
				r:     io.NewSectionReader(r, offs[i], offs[i+1]-offs[i]),
				order: opts.ByteOrder,
				width: opts.PointerWidth,
				off:   offs[i],
				size:  -1,
			}
			if size >= 0 {
				c.size = offs[i+1]
			}
			rec, err := materializeOne(c, &cat.Headers[i], cat.FormatVersion)
			if err != nil {
				return errors.WithGraph(err, cat.Headers[i].Name)
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// materializeOne decodes a single graph's payload. When the source size is
// known the payload is checked against it and buffers are sized from the
// header before any payload byte is read.
func materializeOne(c *Cursor, h *Header, version int32) (*Record, error) {
	size, ok := h.PayloadSize(c.PointerWidth())
	if !ok {
		return nil, errors.New(errors.ErrCodeCorruptContainer,
			"payload size overflows; check byte order / pointer width").AtOffset(c.Offset())
	}
	if err := c.Need(size, "graph payload"); err != nil {
		return nil, err
	}

	// With an unknown source size the header counts are unverified, so
	// buffers start small and grow as bytes arrive.
	eager := c.Remaining() >= 0 || size <= eagerLimit
	capHint := func(n int) int {
		if eager {
			return n
		}
		return min(n, eagerLimit/8)
	}

	var x *Matrix
	if h.NodeFeatureCount > 0 {
		rows, cols := int(h.NodeCount), int(h.NodeFeatureCount)
		x = &Matrix{Rows: rows, Cols: cols, Data: make([]float64, 0, capHint(rows*cols))}
		var err error
		if x.Data, err = c.appendFloat64s(x.Data, rows*cols); err != nil {
			return nil, err
		}
	}

	m := int(h.EdgeCount)
	var ei EdgeIndex
	if m > 0 {
		ei = EdgeIndex{Count: m, Src: make([]uint64, 0, capHint(m)), Dst: make([]uint64, 0, capHint(m))}
	}
	var ea *Matrix
	if ef := int(h.EdgeFeatureCount); m > 0 && ef > 0 {
		ea = &Matrix{Rows: m, Cols: ef, Data: make([]float64, 0, capHint(m*ef))}
	}
	for i := 0; i < m; i++ {
		off := c.Offset()
		u, err := c.ReadSize()
		if err != nil {
			return nil, err
		}
		v, err := c.ReadSize()
		if err != nil {
			return nil, err
		}
		if u >= h.NodeCount || v >= h.NodeCount {
			return nil, errors.New(errors.ErrCodeInvalidEdgeIndex,
				"edge %d (%d, %d) references a node >= node count %d; check byte order / pointer width",
				i, u, v, h.NodeCount).AtOffset(off)
		}
		ei.Src = append(ei.Src, u)
		ei.Dst = append(ei.Dst, v)
		if ea != nil {
			if ea.Data, err = c.appendFloat64s(ea.Data, ea.Cols); err != nil {
				return nil, err
			}
		}
	}

	return NewRecord(*h, version, x, ei, ea)
}
