// Package dtype defines the closed set of tensor element types the
// backend runtime understands, independent of any one engine's own
// type system.
package dtype

import (
	"encoding/json"
	"fmt"
)

// DType is a tensor element type. The set is closed: engine adapters
// translate their own native type enums into this one at the boundary.
type DType uint8

const (
	Invalid DType = iota
	Bool
	Uint8
	Uint16
	Uint32
	Uint64
	Int8
	Int16
	Int32
	Int64
	FP16
	FP32
	FP64
	String
	// Bytes behaves identically to String on the wire (length-prefixed
	// elements) but is kept distinct so an engine can report it without
	// the marshaller assuming UTF-8 content.
	Bytes
)

var names = map[DType]string{
	Invalid: "INVALID",
	Bool:    "BOOL",
	Uint8:   "UINT8",
	Uint16:  "UINT16",
	Uint32:  "UINT32",
	Uint64:  "UINT64",
	Int8:    "INT8",
	Int16:   "INT16",
	Int32:   "INT32",
	Int64:   "INT64",
	FP16:    "FP16",
	FP32:    "FP32",
	FP64:    "FP64",
	String:  "STRING",
	Bytes:   "BYTES",
}

var byName = func() map[string]DType {
	m := make(map[string]DType, len(names))
	for k, v := range names {
		m[v] = k
	}
	return m
}()

// sizes holds the fixed per-element byte size for non-string types.
var sizes = map[DType]int{
	Bool:   1,
	Uint8:  1,
	Uint16: 2,
	Uint32: 4,
	Uint64: 8,
	Int8:   1,
	Int16:  2,
	Int32:  4,
	Int64:  8,
	FP16:   2,
	FP32:   4,
	FP64:   8,
}

func (d DType) String() string {
	if s, ok := names[d]; ok {
		return s
	}
	return fmt.Sprintf("DType(%d)", uint8(d))
}

// Parse converts a config-facing type name (e.g. "FP32") into a DType.
func Parse(s string) (DType, error) {
	if d, ok := byName[s]; ok && d != Invalid {
		return d, nil
	}
	return Invalid, fmt.Errorf("dtype: unknown type name %q", s)
}

// IsString reports whether d is variable-length (String or Bytes), which
// changes how the marshaller sizes and encodes it on the wire.
func (d DType) IsString() bool {
	return d == String || d == Bytes
}

// ByteSize returns the fixed per-element byte size and true, or (0,
// false) if d is variable-length or invalid.
func (d DType) ByteSize() (int, bool) {
	n, ok := sizes[d]
	return n, ok
}

// MarshalJSON encodes a DType as its config-facing name, so model files
// and ModelConfig documents read "FP32" rather than a numeric code.
func (d DType) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *DType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
