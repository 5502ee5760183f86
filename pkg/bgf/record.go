package bgf

import (
	"strings"

	"github.com/matzehuels/bgf/pkg/errors"
)

// Header is the pass-1 description of one graph. Headers are created while
// reading the catalog and never modified afterwards.
type Header struct {
	Name             string
	GraphType        int32
	NodeCount        uint64
	NodeFeatureCount uint32
	NodeFeatureNames []string
	EdgeCount        uint64
	EdgeFeatureCount uint32
	EdgeFeatureNames []string
}

// PayloadSize returns the number of pass-2 bytes this graph occupies for
// the given pointer width. ok is false if the size overflows.
func (h *Header) PayloadSize(width int) (size uint64, ok bool) {
	nodes, ok := mulAdd(h.NodeCount, uint64(h.NodeFeatureCount)*8, 0)
	if !ok {
		return 0, false
	}
	perEdge := uint64(2*width) + uint64(h.EdgeFeatureCount)*8
	return mulAdd(h.EdgeCount, perEdge, nodes)
}

// mulAdd returns a*b+c and whether it fits in an int64.
func mulAdd(a, b, c uint64) (uint64, bool) {
	const limit = uint64(1<<63 - 1)
	if b != 0 && a > limit/b {
		return 0, false
	}
	p := a * b
	if p > limit-c {
		return 0, false
	}
	return p + c, true
}

// Matrix is a dense row-major matrix of 64-bit floats. An absent matrix is
// represented by a nil *Matrix, never by a zero-column one.
type Matrix struct {
	Rows int
	Cols int
	Data []float64
}

// NewMatrix allocates a zeroed rows x cols matrix.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// Row returns row i as a sub-slice of the backing storage.
func (m *Matrix) Row(i int) []float64 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// At returns element (i, j).
func (m *Matrix) At(i, j int) float64 {
	return m.Data[i*m.Cols+j]
}

// Shape returns [rows, cols].
func (m *Matrix) Shape() [2]int {
	return [2]int{m.Rows, m.Cols}
}

// EdgeIndex is a [2, Count] matrix of zero-based endpoints: Src holds row 0
// and Dst row 1. A graph without edges has Count 0 and nil rows.
type EdgeIndex struct {
	Count int
	Src   []uint64
	Dst   []uint64
}

// NewEdgeIndex allocates an edge index for m edges.
func NewEdgeIndex(m int) EdgeIndex {
	if m == 0 {
		return EdgeIndex{}
	}
	return EdgeIndex{Count: m, Src: make([]uint64, m), Dst: make([]uint64, m)}
}

// Shape returns [2, Count].
func (e EdgeIndex) Shape() [2]int {
	return [2]int{2, e.Count}
}

// Edge returns the endpoints of edge i.
func (e EdgeIndex) Edge(i int) (u, v uint64) {
	return e.Src[i], e.Dst[i]
}

// Record is one fully decoded graph. Records are immutable once built;
// slices may share storage with a collection's columnar buffers.
type Record struct {
	Header        Header
	FormatVersion int32

	// NodeFeatures is [NodeCount, NodeFeatureCount], nil iff NodeFeatureCount == 0.
	NodeFeatures *Matrix
	EdgeIndex    EdgeIndex
	// EdgeFeatures is [EdgeCount, EdgeFeatureCount], nil if either is 0.
	EdgeFeatures *Matrix

	// Derived from Header.Name.
	NameParts     []string
	EditPathStart string
	EditPathEnd   string
	EditPathStep  string
}

// NewRecord assembles a record and computes its derived edit path fields.
// The name must carry at least three underscore-delimited tokens.
func NewRecord(h Header, version int32, x *Matrix, ei EdgeIndex, ea *Matrix) (*Record, error) {
	if err := errors.ValidateEditPathName(h.Name); err != nil {
		return nil, errors.WithGraph(err, h.Name)
	}
	h.NodeFeatureNames = nilIfEmpty(h.NodeFeatureNames)
	h.EdgeFeatureNames = nilIfEmpty(h.EdgeFeatureNames)
	if ei.Count == 0 {
		ei = EdgeIndex{}
	}
	x, ea = compact(x), compact(ea)

	parts := strings.Split(h.Name, "_")
	n := len(parts)
	return &Record{
		Header:        h,
		FormatVersion: version,
		NodeFeatures:  x,
		EdgeIndex:     ei,
		EdgeFeatures:  ea,
		NameParts:     parts,
		EditPathStart: parts[n-3],
		EditPathEnd:   parts[n-2],
		EditPathStep:  parts[n-1],
	}, nil
}

// Name returns the graph name.
func (r *Record) Name() string { return r.Header.Name }

// NumNodes returns the declared node count.
func (r *Record) NumNodes() int { return int(r.Header.NodeCount) }

// NumEdges returns the declared edge count.
func (r *Record) NumEdges() int { return int(r.Header.EdgeCount) }

// compact drops an empty backing slice so equal shapes compare equal.
func compact(m *Matrix) *Matrix {
	if m != nil && len(m.Data) == 0 && m.Data != nil {
		return &Matrix{Rows: m.Rows, Cols: m.Cols}
	}
	return m
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
