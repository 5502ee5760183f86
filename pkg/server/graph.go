package server

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/matzehuels/bgf/pkg/bgf"
)

// Graph is the JSON form of one record.
type Graph struct {
	Index            int      `json:"index"`
	Name             string   `json:"name"`
	GraphType        int32    `json:"graph_type"`
	FormatVersion    int32    `json:"format_version"`
	EditPath         EditPath `json:"edit_path"`
	NodeCount        uint64   `json:"node_count"`
	EdgeCount        uint64   `json:"edge_count"`
	NodeFeatureNames []string `json:"node_feature_names"`
	EdgeFeatureNames []string `json:"edge_feature_names"`

	// Absent matrices are null.
	NodeFeatures *Matrix     `json:"node_features"`
	EdgeIndex    [2][]uint64 `json:"edge_index"`
	EdgeFeatures *Matrix     `json:"edge_features"`
}

// EditPath holds the fields derived from a graph name.
type EditPath struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Step  string `json:"step"`
}

// Matrix is a shaped row-major matrix.
type Matrix struct {
	Shape [2]int      `json:"shape"`
	Rows  [][]Float `json:"rows"`
}

// Float is a feature value. JSON has no literal for NaN or the infinities,
// so those encode as the strings "NaN", "Infinity" and "-Infinity".
type Float float64

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Infinity"`), nil
	}
	return json.Marshal(v)
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Float) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		switch s {
		case "NaN":
			*f = Float(math.NaN())
		case "Infinity":
			*f = Float(math.Inf(1))
		case "-Infinity":
			*f = Float(math.Inf(-1))
		default:
			return fmt.Errorf("invalid feature value %q", s)
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// NewGraph converts record i.
func NewGraph(i int, r *bgf.Record) Graph {
	g := Graph{
		Index:         i,
		Name:          r.Name(),
		GraphType:     r.Header.GraphType,
		FormatVersion: r.FormatVersion,
		EditPath: EditPath{
			Start: r.EditPathStart,
			End:   r.EditPathEnd,
			Step:  r.EditPathStep,
		},
		NodeCount:        r.Header.NodeCount,
		EdgeCount:        r.Header.EdgeCount,
		NodeFeatureNames: orEmpty(r.Header.NodeFeatureNames),
		EdgeFeatureNames: orEmpty(r.Header.EdgeFeatureNames),
		NodeFeatures:     newMatrix(r.NodeFeatures),
		EdgeIndex:        [2][]uint64{{}, {}},
		EdgeFeatures:     newMatrix(r.EdgeFeatures),
	}
	if r.EdgeIndex.Count > 0 {
		g.EdgeIndex = [2][]uint64{r.EdgeIndex.Src, r.EdgeIndex.Dst}
	}
	return g
}

func newMatrix(m *bgf.Matrix) *Matrix {
	if m == nil {
		return nil
	}
	rows := make([][]Float, m.Rows)
	for i := range rows {
		row := m.Row(i)
		rows[i] = make([]Float, len(row))
		for j, v := range row {
			rows[i][j] = Float(v)
		}
	}
	return &Matrix{Shape: m.Shape(), Rows: rows}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
