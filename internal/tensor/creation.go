package tensor

import "fmt"

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	t := tensor.Zeros(tensor.Shape{3, 4}, tensor.Float64)
func Zeros(shape Shape, dtype DataType) *RawTensor {
	raw, err := NewRaw(shape, dtype)
	if err != nil {
		panic(err) // Shape validation should prevent this
	}
	return raw
}

// Full creates a tensor filled with a specific value.
func Full(shape Shape, dtype DataType, value float64) *RawTensor {
	t := Zeros(shape, dtype)
	switch dtype {
	case Float32:
		data := t.AsFloat32()
		for i := range data {
			data[i] = float32(value)
		}
	case Float64:
		data := t.AsFloat64()
		for i := range data {
			data[i] = value
		}
	}
	return t
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape, dtype DataType) *RawTensor {
	return Full(shape, dtype, 1)
}

// ZerosLike creates a zero tensor with the shape and dtype of t.
func ZerosLike(t *RawTensor) *RawTensor {
	return Zeros(t.Shape(), t.DType())
}

// OnesLike creates a tensor of ones with the shape and dtype of t.
func OnesLike(t *RawTensor) *RawTensor {
	return Ones(t.Shape(), t.DType())
}

// Scalar creates a 0-D tensor holding value.
func Scalar(value float64, dtype DataType) *RawTensor {
	return Full(Shape{}, dtype, value)
}

// FromFloat64s creates a Float64 tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromFloat64s(data []float64, shape Shape) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	raw, err := NewRaw(shape, Float64)
	if err != nil {
		return nil, err
	}
	copy(raw.AsFloat64(), data)
	return raw, nil
}

// FromFloat32s creates a Float32 tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromFloat32s(data []float32, shape Shape) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	raw, err := NewRaw(shape, Float32)
	if err != nil {
		return nil, err
	}
	copy(raw.AsFloat32(), data)
	return raw, nil
}

// MustFromFloat64s is like FromFloat64s but panics on a size mismatch.
// Intended for tests and literals.
func MustFromFloat64s(data []float64, shape Shape) *RawTensor {
	t, err := FromFloat64s(data, shape)
	if err != nil {
		panic(err)
	}
	return t
}
