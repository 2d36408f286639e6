package tensor

import (
	"fmt"
	"unsafe"
)

// RawTensor is the low-level tensor representation: a contiguous row-major
// byte buffer interpreted according to its DataType.
//
// RawTensor values are owned by exactly one graph node at a time. Sharing is
// done explicitly through Clone, which always produces an independent copy.
type RawTensor struct {
	data  []byte
	shape Shape
	dtype DataType
}

// NewRaw creates a new RawTensor with the given shape and type.
// Memory is allocated and zero-initialized.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &RawTensor{
		data:  make([]byte, shape.NumElements()*dtype.Size()),
		shape: shape.Clone(),
		dtype: dtype,
	}, nil
}

// IsEmpty reports whether t is the empty sentinel.
func IsEmpty(t *RawTensor) bool {
	return t == nil || len(t.data) == 0
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return r.NumElements() * r.dtype.Size()
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.data
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.dtype))
	}
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 {
	if r.dtype != Float64 {
		panic(fmt.Sprintf("tensor dtype is %s, not float64", r.dtype))
	}
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*float64)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// Clone returns a deep copy of the tensor. The copy stays valid after the
// source is dropped or overwritten, which is what checkpoint snapshots rely on.
func (r *RawTensor) Clone() *RawTensor {
	if r == nil {
		return nil
	}
	data := make([]byte, len(r.data))
	copy(data, r.data)
	return &RawTensor{
		data:  data,
		shape: r.shape.Clone(),
		dtype: r.dtype,
	}
}

// Reshape returns a copy of the tensor with a new shape of the same size.
func (r *RawTensor) Reshape(shape Shape) (*RawTensor, error) {
	if shape.NumElements() != r.NumElements() {
		return nil, fmt.Errorf("cannot reshape %v into %v", r.shape, shape)
	}
	out := r.Clone()
	out.shape = shape.Clone()
	return out, nil
}

// Float64s returns the elements converted to float64.
// For Float64 tensors the result is a copy, never a view.
func (r *RawTensor) Float64s() []float64 {
	out := make([]float64, r.NumElements())
	switch r.dtype {
	case Float32:
		for i, v := range r.AsFloat32() {
			out[i] = float64(v)
		}
	case Float64:
		copy(out, r.AsFloat64())
	}
	return out
}

// Item returns the single element of a one-element tensor.
// Panics if the tensor has more than one element.
func (r *RawTensor) Item() float64 {
	if r.NumElements() != 1 {
		panic(fmt.Sprintf("Item() only works for one-element tensors, got shape %v", r.shape))
	}
	return r.Float64s()[0]
}

// String returns a short description: dtype, shape and, for small tensors, the values.
func (r *RawTensor) String() string {
	if r == nil {
		return "<empty>"
	}
	if r.NumElements() <= 8 {
		return fmt.Sprintf("%s%v%v", r.dtype, []int(r.shape), r.Float64s())
	}
	return fmt.Sprintf("%s%v", r.dtype, []int(r.shape))
}
