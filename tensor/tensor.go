// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor exposes the dense values carried by graph nodes.
//
// A nil *RawTensor is the empty value: it marks a node whose value was never
// computed or was evicted by checkpointing.
//
// Example:
//
//	x := tensor.MustFromFloat64s([]float64{1, 2, 3, 4}, tensor.Shape{2, 2})
//	y := x.Clone()
//	same := tensor.Fingerprint(x) == tensor.Fingerprint(y) // true
package tensor

import (
	"github.com/born-ml/agraph/internal/tensor"
)

// RawTensor is a contiguous row-major buffer with a shape and a data type.
type RawTensor = tensor.RawTensor

// Shape is the size of each dimension.
type Shape = tensor.Shape

// DataType is the element type of a tensor.
type DataType = tensor.DataType

// Supported data types.
const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
)

// Zeros creates a zero-filled tensor.
func Zeros(shape Shape, dtype DataType) *RawTensor {
	return tensor.Zeros(shape, dtype)
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape, dtype DataType) *RawTensor {
	return tensor.Ones(shape, dtype)
}

// Full creates a tensor filled with value.
func Full(shape Shape, dtype DataType, value float64) *RawTensor {
	return tensor.Full(shape, dtype, value)
}

// Scalar creates a 0-D tensor holding value.
func Scalar(value float64, dtype DataType) *RawTensor {
	return tensor.Scalar(value, dtype)
}

// FromFloat64s creates a Float64 tensor from data, which must hold exactly
// shape.NumElements() values.
func FromFloat64s(data []float64, shape Shape) (*RawTensor, error) {
	return tensor.FromFloat64s(data, shape)
}

// FromFloat32s creates a Float32 tensor from data.
func FromFloat32s(data []float32, shape Shape) (*RawTensor, error) {
	return tensor.FromFloat32s(data, shape)
}

// MustFromFloat64s is FromFloat64s that panics on error.
func MustFromFloat64s(data []float64, shape Shape) *RawTensor {
	return tensor.MustFromFloat64s(data, shape)
}

// IsEmpty reports whether t is the empty value.
func IsEmpty(t *RawTensor) bool {
	return tensor.IsEmpty(t)
}

// Fingerprint hashes dtype, shape and bytes of t. Equal fingerprints mean
// bit-identical tensors; the empty value hashes to 0.
func Fingerprint(t *RawTensor) uint64 {
	return tensor.Fingerprint(t)
}
