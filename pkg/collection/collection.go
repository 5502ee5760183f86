// Package collection holds decoded graphs in columnar form.
//
// A [Collection] keeps every attribute of every graph in one concatenated
// buffer per key, delimited by cumulative offsets. [Collection.Get]
// rebuilds a single [bgf.Record] by slicing each buffer, so access is O(1)
// and records share storage with the collection.
//
// The columnar form is also the cache artifact payload: [Marshal] and
// [Unmarshal] convert it to and from msgpack, and [Restore] validates
// untrusted columns before any record is handed out.
package collection

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/matzehuels/bgf/pkg/bgf"
	"github.com/matzehuels/bgf/pkg/errors"
)

// Collection is a read-only, indexable sequence of graphs.
type Collection struct {
	cols *Columns

	// Element offsets into the float buffers.
	nodeStarts []int
	edgeStarts []int
}

// New collates records into a collection.
func New(records []*bgf.Record) (*Collection, error) {
	return Restore(Collate(records))
}

// Restore validates cols and wraps them in a collection. Structural
// problems are reported as CORRUPT_CACHE.
func Restore(cols *Columns) (*Collection, error) {
	if cols == nil {
		return nil, errors.New(errors.ErrCodeCorruptCache, "no columns")
	}
	n := cols.Count
	if n < 0 {
		return nil, errors.New(errors.ErrCodeCorruptCache, "negative record count %d", n)
	}
	for key, l := range map[string]int{
		"format_versions":     len(cols.FormatVersions),
		"names":               len(cols.Names),
		"graph_types":         len(cols.GraphTypes),
		"node_counts":         len(cols.NodeCounts),
		"edge_counts":         len(cols.EdgeCounts),
		"node_feature_counts": len(cols.NodeFeatureCounts),
		"edge_feature_counts": len(cols.EdgeFeatureCounts),
	} {
		if l != n {
			return nil, corrupt(key, "%d entries for %d records", l, n)
		}
	}
	for i, name := range cols.Names {
		if err := errors.ValidateEditPathName(name); err != nil {
			return nil, corrupt("names", "record %d: %s", i, errors.UserMessage(err))
		}
	}

	if err := cols.NodeFeatureNames.validate("node_feature_names", n, cols.NodeFeatureCounts); err != nil {
		return nil, err
	}
	if err := cols.EdgeFeatureNames.validate("edge_feature_names", n, cols.EdgeFeatureCounts); err != nil {
		return nil, err
	}
	if err := cols.EdgeIndex.validate("edge_index", n, cols.EdgeCounts, cols.NodeCounts); err != nil {
		return nil, err
	}
	nodeStarts, err := cols.NodeFeatures.validate("x", n, cols.NodeCounts, cols.NodeFeatureCounts)
	if err != nil {
		return nil, err
	}
	edgeStarts, err := cols.EdgeFeatures.validate("edge_attr", n, cols.EdgeCounts, cols.EdgeFeatureCounts)
	if err != nil {
		return nil, err
	}

	return &Collection{cols: cols, nodeStarts: nodeStarts, edgeStarts: edgeStarts}, nil
}

// Len returns the number of graphs.
func (c *Collection) Len() int { return c.cols.Count }

// Get reconstructs graph i. It fails with INDEX_OUT_OF_RANGE outside [0, Len).
func (c *Collection) Get(i int) (*bgf.Record, error) {
	if i < 0 || i >= c.Len() {
		return nil, errors.New(errors.ErrCodeIndexOutOfRange, "index %d out of range [0, %d)", i, c.Len())
	}
	cols := c.cols
	h := bgf.Header{
		Name:             cols.Names[i],
		GraphType:        cols.GraphTypes[i],
		NodeCount:        cols.NodeCounts[i],
		NodeFeatureCount: cols.NodeFeatureCounts[i],
		NodeFeatureNames: cols.NodeFeatureNames.at(i),
		EdgeCount:        cols.EdgeCounts[i],
		EdgeFeatureCount: cols.EdgeFeatureCounts[i],
		EdgeFeatureNames: cols.EdgeFeatureNames.at(i),
	}
	return bgf.NewRecord(h, cols.FormatVersions[i],
		cols.NodeFeatures.at(i, c.nodeStarts),
		cols.EdgeIndex.at(i),
		cols.EdgeFeatures.at(i, c.edgeStarts))
}

// Records reconstructs every graph in order.
func (c *Collection) Records() ([]*bgf.Record, error) {
	out := make([]*bgf.Record, c.Len())
	for i := range out {
		r, err := c.Get(i)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// Columns returns the underlying columnar form. Callers must not modify it.
func (c *Collection) Columns() *Columns { return c.cols }

// Marshal encodes the collection's columns as msgpack.
func Marshal(c *Collection) ([]byte, error) {
	return msgpack.Marshal(c.cols)
}

// Unmarshal decodes and validates msgpack-encoded columns.
func Unmarshal(data []byte) (*Collection, error) {
	var cols Columns
	if err := msgpack.Unmarshal(data, &cols); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCorruptCache, err, "decode columns")
	}
	return Restore(&cols)
}
