package engine

import "inferd/pkg/dtype"

// fixedTensor wraps a contiguous byte buffer for a fixed-size dtype,
// zero-copy (spec section 4.1's create_tensor_from_buffer).
type fixedTensor struct {
	dt    dtype.DType
	shape []int64
	buf   []byte
}

// NewFixedTensor wraps buf as a tensor of the given dtype and shape,
// without copying.
func NewFixedTensor(dt dtype.DType, shape []int64, buf []byte) Tensor {
	return &fixedTensor{dt: dt, shape: shape, buf: buf}
}

func (t *fixedTensor) DType() dtype.DType { return t.dt }
func (t *fixedTensor) Shape() []int64     { return t.shape }
func (t *fixedTensor) Bytes() []byte      { return t.buf }
func (t *fixedTensor) Strings() [][]byte {
	panic("engine: Strings() called on a fixed-dtype tensor")
}

// stringTensor holds decoded per-element byte strings for a string or
// bytes dtype tensor.
type stringTensor struct {
	dt     dtype.DType
	shape  []int64
	values [][]byte
}

// NewStringTensor builds a string/bytes tensor from its decoded
// elements (spec section 4.1's create_string_tensor + fill_string).
func NewStringTensor(dt dtype.DType, shape []int64, values [][]byte) Tensor {
	return &stringTensor{dt: dt, shape: shape, values: values}
}

func (t *stringTensor) DType() dtype.DType { return t.dt }
func (t *stringTensor) Shape() []int64     { return t.shape }
func (t *stringTensor) Bytes() []byte {
	panic("engine: Bytes() called on a string-dtype tensor")
}
func (t *stringTensor) Strings() [][]byte { return t.values }
