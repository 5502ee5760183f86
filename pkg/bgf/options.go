package bgf

import (
	"encoding/binary"
	"strings"

	"github.com/matzehuels/bgf/pkg/errors"
)

// Default decode settings. They match a 64-bit little-endian writer, which
// is what the edit path generator produces on common hardware.
const (
	DefaultPointerWidth = 8
	DefaultWorkers      = 1
)

// Byte order names accepted by ParseByteOrder and produced by ByteOrderName.
const (
	LittleEndian = "little"
	BigEndian    = "big"
)

// Options describes how a container was written. BGF is not self-describing
// about its byte order or size_t width, so both must be known out-of-band.
type Options struct {
	// ByteOrder of every multi-byte field. Nil means little-endian.
	ByteOrder binary.ByteOrder

	// PointerWidth is the writer's size_t width in bytes (4 or 8).
	// Zero means DefaultPointerWidth.
	PointerWidth int

	// Workers bounds pass-2 parallelism for seekable sources.
	// Values <= 1 select the sequential forward-only decoder.
	Workers int
}

// DefaultOptions returns little-endian, 8-byte size_t, sequential decoding.
func DefaultOptions() Options {
	return Options{
		ByteOrder:    binary.LittleEndian,
		PointerWidth: DefaultPointerWidth,
		Workers:      DefaultWorkers,
	}
}

// withDefaults fills zero values and validates the result.
func (o Options) withDefaults() (Options, error) {
	if o.ByteOrder == nil {
		o.ByteOrder = binary.LittleEndian
	}
	if o.PointerWidth == 0 {
		o.PointerWidth = DefaultPointerWidth
	}
	if o.Workers < 1 {
		o.Workers = DefaultWorkers
	}
	if err := errors.ValidatePointerWidth(o.PointerWidth); err != nil {
		return o, err
	}
	return o, nil
}

// ParseByteOrder accepts "little"/"big" (any case) and the struct-module
// style markers "<" and ">".
func ParseByteOrder(s string) (binary.ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", LittleEndian, "le", "<":
		return binary.LittleEndian, nil
	case BigEndian, "be", ">":
		return binary.BigEndian, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig, "invalid byte order %q (must be one of: little, big, <, >)", s)
}

// ByteOrderName returns the canonical name of order.
func ByteOrderName(order binary.ByteOrder) string {
	if order == binary.BigEndian {
		return BigEndian
	}
	return LittleEndian
}
