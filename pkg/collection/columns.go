package collection

import (
	"math"

	"github.com/matzehuels/bgf/pkg/bgf"
	"github.com/matzehuels/bgf/pkg/errors"
)

// absent marks a record whose matrix is not present in a FloatColumn.
const absent = -1

// Columns is the columnar form of a collection: one concatenated buffer
// per attribute key plus cumulative per-record offsets of length Count+1.
// It is the payload persisted in cache artifacts.
type Columns struct {
	Count int `msgpack:"count"`

	FormatVersions    []int32  `msgpack:"format_versions"`
	Names             []string `msgpack:"names"`
	GraphTypes        []int32  `msgpack:"graph_types"`
	NodeCounts        []uint64 `msgpack:"node_counts"`
	EdgeCounts        []uint64 `msgpack:"edge_counts"`
	NodeFeatureCounts []uint32 `msgpack:"node_feature_counts"`
	EdgeFeatureCounts []uint32 `msgpack:"edge_feature_counts"`

	NodeFeatureNames StringColumn `msgpack:"node_feature_names"`
	EdgeFeatureNames StringColumn `msgpack:"edge_feature_names"`

	NodeFeatures FloatColumn `msgpack:"x"`
	EdgeIndex    IndexColumn `msgpack:"edge_index"`
	EdgeFeatures FloatColumn `msgpack:"edge_attr"`
}

// FloatColumn concatenates one row-major matrix per record along the row
// axis. Offsets are cumulative row counts; Cols carries each record's
// trailing dimension, or -1 when the record has no matrix.
type FloatColumn struct {
	Data    []float64 `msgpack:"data"`
	Offsets []int     `msgpack:"offsets"`
	Cols    []int     `msgpack:"cols"`
}

// IndexColumn concatenates edge indices. Offsets are cumulative edge counts.
type IndexColumn struct {
	Src     []uint64 `msgpack:"src"`
	Dst     []uint64 `msgpack:"dst"`
	Offsets []int    `msgpack:"offsets"`
}

// StringColumn concatenates per-record name lists.
type StringColumn struct {
	Values  []string `msgpack:"values"`
	Offsets []int    `msgpack:"offsets"`
}

// Collate converts records into columnar form, in collection order.
func Collate(records []*bgf.Record) *Columns {
	n := len(records)
	c := &Columns{
		Count:             n,
		FormatVersions:    make([]int32, 0, n),
		Names:             make([]string, 0, n),
		GraphTypes:        make([]int32, 0, n),
		NodeCounts:        make([]uint64, 0, n),
		EdgeCounts:        make([]uint64, 0, n),
		NodeFeatureCounts: make([]uint32, 0, n),
		EdgeFeatureCounts: make([]uint32, 0, n),
		NodeFeatureNames:  StringColumn{Offsets: offsetsFor(n)},
		EdgeFeatureNames:  StringColumn{Offsets: offsetsFor(n)},
		NodeFeatures:      FloatColumn{Offsets: offsetsFor(n), Cols: make([]int, 0, n)},
		EdgeIndex:         IndexColumn{Offsets: offsetsFor(n)},
		EdgeFeatures:      FloatColumn{Offsets: offsetsFor(n), Cols: make([]int, 0, n)},
	}

	var edges int
	for _, r := range records {
		edges += r.EdgeIndex.Count
	}
	c.EdgeIndex.Src = make([]uint64, 0, edges)
	c.EdgeIndex.Dst = make([]uint64, 0, edges)

	for _, r := range records {
		h := &r.Header
		c.FormatVersions = append(c.FormatVersions, r.FormatVersion)
		c.Names = append(c.Names, h.Name)
		c.GraphTypes = append(c.GraphTypes, h.GraphType)
		c.NodeCounts = append(c.NodeCounts, h.NodeCount)
		c.EdgeCounts = append(c.EdgeCounts, h.EdgeCount)
		c.NodeFeatureCounts = append(c.NodeFeatureCounts, h.NodeFeatureCount)
		c.EdgeFeatureCounts = append(c.EdgeFeatureCounts, h.EdgeFeatureCount)

		c.NodeFeatureNames.append(h.NodeFeatureNames)
		c.EdgeFeatureNames.append(h.EdgeFeatureNames)
		c.NodeFeatures.append(r.NodeFeatures)
		c.EdgeIndex.append(r.EdgeIndex)
		c.EdgeFeatures.append(r.EdgeFeatures)
	}
	return c
}

func offsetsFor(n int) []int {
	offs := make([]int, 1, n+1)
	return offs
}

func last(offs []int) int { return offs[len(offs)-1] }

func (s *StringColumn) append(values []string) {
	s.Values = append(s.Values, values...)
	s.Offsets = append(s.Offsets, last(s.Offsets)+len(values))
}

func (s *StringColumn) at(i int) []string {
	a, b := s.Offsets[i], s.Offsets[i+1]
	return s.Values[a:b:b]
}

func (f *FloatColumn) append(m *bgf.Matrix) {
	if m == nil {
		f.Offsets = append(f.Offsets, last(f.Offsets))
		f.Cols = append(f.Cols, absent)
		return
	}
	f.Data = append(f.Data, m.Data...)
	f.Offsets = append(f.Offsets, last(f.Offsets)+m.Rows)
	f.Cols = append(f.Cols, m.Cols)
}

// at slices record i's matrix out of the buffer. starts holds the element
// offsets computed by validate.
func (f *FloatColumn) at(i int, starts []int) *bgf.Matrix {
	cols := f.Cols[i]
	if cols == absent {
		return nil
	}
	a, b := starts[i], starts[i+1]
	return &bgf.Matrix{
		Rows: f.Offsets[i+1] - f.Offsets[i],
		Cols: cols,
		Data: f.Data[a:b:b],
	}
}

func (x *IndexColumn) append(ei bgf.EdgeIndex) {
	x.Src = append(x.Src, ei.Src[:ei.Count]...)
	x.Dst = append(x.Dst, ei.Dst[:ei.Count]...)
	x.Offsets = append(x.Offsets, last(x.Offsets)+ei.Count)
}

func (x *IndexColumn) at(i int) bgf.EdgeIndex {
	a, b := x.Offsets[i], x.Offsets[i+1]
	if a == b {
		return bgf.EdgeIndex{}
	}
	return bgf.EdgeIndex{Count: b - a, Src: x.Src[a:b:b], Dst: x.Dst[a:b:b]}
}

func corrupt(key, format string, args ...any) error {
	e := errors.New(errors.ErrCodeCorruptCache, format, args...)
	e.Message = key + ": " + e.Message
	return e
}

// checkOffsets verifies an offset sequence for n records over a buffer of
// total entries: length n+1, starting at 0, non-decreasing, ending at total.
func checkOffsets(key string, offs []int, n, total int) error {
	if len(offs) != n+1 {
		return corrupt(key, "%d offsets for %d records", len(offs), n)
	}
	if offs[0] != 0 {
		return corrupt(key, "first offset is %d", offs[0])
	}
	for i := 0; i < n; i++ {
		if offs[i+1] < offs[i] {
			return corrupt(key, "offsets decrease at record %d", i)
		}
	}
	if offs[n] != total {
		return corrupt(key, "final offset %d, buffer holds %d", offs[n], total)
	}
	return nil
}

func (s *StringColumn) validate(key string, n int, counts []uint32) error {
	if err := checkOffsets(key, s.Offsets, n, len(s.Values)); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if got := s.Offsets[i+1] - s.Offsets[i]; uint64(got) != uint64(counts[i]) {
			return corrupt(key, "record %d has %d names, header declares %d", i, got, counts[i])
		}
	}
	return nil
}

// validate checks the column against each record's declared row and
// feature counts and returns the cumulative element offsets used for O(1)
// slicing. A matrix is present only with a non-zero feature count matching
// its column count; it may be absent only when it would hold no values.
func (f *FloatColumn) validate(key string, n int, rows []uint64, feats []uint32) ([]int, error) {
	if len(f.Cols) != n {
		return nil, corrupt(key, "%d dims for %d records", len(f.Cols), n)
	}
	if len(f.Offsets) != n+1 || f.Offsets[0] != 0 {
		return nil, corrupt(key, "malformed offsets")
	}

	starts := make([]int, n+1)
	for i := 0; i < n; i++ {
		r := f.Offsets[i+1] - f.Offsets[i]
		cols := f.Cols[i]
		switch {
		case r < 0:
			return nil, corrupt(key, "offsets decrease at record %d", i)
		case cols < absent:
			return nil, corrupt(key, "record %d has %d columns", i, cols)
		case cols == absent && r != 0:
			return nil, corrupt(key, "absent matrix at record %d spans %d rows", i, r)
		case cols != absent && uint64(r) != rows[i]:
			return nil, corrupt(key, "record %d has %d rows, header declares %d", i, r, rows[i])
		case cols != absent && (cols == 0 || uint64(cols) != uint64(feats[i])):
			return nil, corrupt(key, "record %d has %d columns, header declares %d features", i, cols, feats[i])
		case cols == absent && feats[i] > 0 && rows[i] > 0:
			return nil, corrupt(key, "record %d declares %d features but has no matrix", i, feats[i])
		}
		size := 0
		if cols > 0 {
			if r > (math.MaxInt-starts[i])/cols {
				return nil, corrupt(key, "record %d size overflows", i)
			}
			size = r * cols
		}
		starts[i+1] = starts[i] + size
	}
	if starts[n] != len(f.Data) {
		return nil, corrupt(key, "records span %d values, buffer holds %d", starts[n], len(f.Data))
	}
	return starts, nil
}

func (x *IndexColumn) validate(key string, n int, edges, nodes []uint64) error {
	if len(x.Src) != len(x.Dst) {
		return corrupt(key, "%d sources, %d destinations", len(x.Src), len(x.Dst))
	}
	if err := checkOffsets(key, x.Offsets, n, len(x.Src)); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		a, b := x.Offsets[i], x.Offsets[i+1]
		if uint64(b-a) != edges[i] {
			return corrupt(key, "record %d has %d edges, header declares %d", i, b-a, edges[i])
		}
		for j := a; j < b; j++ {
			if x.Src[j] >= nodes[i] || x.Dst[j] >= nodes[i] {
				return corrupt(key, "record %d edge %d references a node >= %d", i, j-a, nodes[i])
			}
		}
	}
	return nil
}
