package bgf

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/matzehuels/bgf/pkg/errors"
)

// Encoder writes records in the BGF layout: every header first (pass 1),
// then every payload in the same order (pass 2).
type Encoder struct {
	order binary.ByteOrder
	width int
}

// NewEncoder creates an encoder for the given byte order and pointer width.
func NewEncoder(order binary.ByteOrder, width int) (*Encoder, error) {
	if err := errors.ValidatePointerWidth(width); err != nil {
		return nil, err
	}
	if order == nil {
		order = binary.LittleEndian
	}
	return &Encoder{order: order, width: width}, nil
}

// Encode writes a complete container to w.
func (e *Encoder) Encode(w io.Writer, version int32, records []*Record) error {
	bw := bufio.NewWriter(w)
	ew := &errWriter{w: bw, order: e.order}

	ew.u32(uint32(version))
	ew.u32(uint32(len(records)))
	for _, r := range records {
		h := &r.Header
		ew.str(h.Name)
		ew.u32(uint32(h.GraphType))
		ew.size(e.width, h.NodeCount)
		ew.u32(h.NodeFeatureCount)
		for _, n := range h.NodeFeatureNames {
			ew.str(n)
		}
		ew.size(e.width, h.EdgeCount)
		ew.u32(h.EdgeFeatureCount)
		for _, n := range h.EdgeFeatureNames {
			ew.str(n)
		}
	}
	for _, r := range records {
		if r.NodeFeatures != nil {
			ew.f64s(r.NodeFeatures.Data)
		}
		for i := 0; i < r.EdgeIndex.Count; i++ {
			u, v := r.EdgeIndex.Edge(i)
			ew.size(e.width, u)
			ew.size(e.width, v)
			if r.EdgeFeatures != nil {
				ew.f64s(r.EdgeFeatures.Row(i))
			}
		}
	}
	if ew.err != nil {
		return ew.err
	}
	return bw.Flush()
}

// EncodeBytes returns the encoded container.
func (e *Encoder) EncodeBytes(version int32, records []*Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Encode(&buf, version, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// errWriter latches the first write error.
type errWriter struct {
	w     io.Writer
	order binary.ByteOrder
	buf   [8]byte
	err   error
}

func (w *errWriter) write(p []byte) {
	if w.err == nil {
		_, w.err = w.w.Write(p)
	}
}

func (w *errWriter) u32(v uint32) {
	w.order.PutUint32(w.buf[:4], v)
	w.write(w.buf[:4])
}

func (w *errWriter) size(width int, v uint64) {
	if width == 4 {
		w.u32(uint32(v))
		return
	}
	w.order.PutUint64(w.buf[:8], v)
	w.write(w.buf[:8])
}

func (w *errWriter) str(s string) {
	w.u32(uint32(len(s)))
	w.write([]byte(s))
}

func (w *errWriter) f64s(vs []float64) {
	for _, v := range vs {
		w.order.PutUint64(w.buf[:8], math.Float64bits(v))
		w.write(w.buf[:8])
	}
}
