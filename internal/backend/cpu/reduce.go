package cpu

import (
	"fmt"

	"github.com/born-ml/agraph/internal/tensor"
)

// Sum reduces all elements to a scalar (shape []).
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.SumTo(x, tensor.Shape{})
}

// Mean reduces all elements to their average (shape []).
func (cpu *CPUBackend) Mean(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.MulScalar(cpu.Sum(x), 1.0/float64(x.NumElements()))
}

// SumTo reduces x to target by summing over broadcast dimensions.
// target must broadcast to x's shape; this is the adjoint of BroadcastTo.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: SumTo(grad_c[3,4], [3,1]) -> grad_a[3,1]
func (cpu *CPUBackend) SumTo(x *tensor.RawTensor, target tensor.Shape) *tensor.RawTensor {
	if x.Shape().Equal(target) {
		return x.Clone()
	}
	outShape, _, err := tensor.BroadcastShapes(target, x.Shape())
	if err != nil || !outShape.Equal(x.Shape()) {
		panic(fmt.Sprintf("sumto: %v does not broadcast to %v", target, x.Shape()))
	}

	result := newResult("sumto", target, x.DType())
	srcStrides := x.Shape().ComputeStrides()
	dstStrides := target.BroadcastStrides(x.Shape())

	switch x.DType() {
	case tensor.Float32:
		sumToSlice(result.AsFloat32(), x.AsFloat32(), srcStrides, dstStrides)
	case tensor.Float64:
		sumToSlice(result.AsFloat64(), x.AsFloat64(), srcStrides, dstStrides)
	default:
		panic(fmt.Sprintf("sumto: unsupported dtype %s", x.DType()))
	}
	return result
}

func sumToSlice[T tensor.Float](dst, src []T, srcStrides, dstStrides []int) {
	for i, v := range src {
		dst[tensor.SourceIndex(i, srcStrides, dstStrides)] += v
	}
}

// BroadcastTo expands x to shape following broadcasting rules.
func (cpu *CPUBackend) BroadcastTo(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	if x.Shape().Equal(shape) {
		return x.Clone()
	}
	outShape, _, err := tensor.BroadcastShapes(x.Shape(), shape)
	if err != nil || !outShape.Equal(shape) {
		panic(fmt.Sprintf("broadcast: %v cannot be expanded to %v", x.Shape(), shape))
	}

	result := newResult("broadcast", shape, x.DType())
	outStrides := shape.ComputeStrides()
	inStrides := x.Shape().BroadcastStrides(shape)

	switch x.DType() {
	case tensor.Float32:
		broadcastSlice(result.AsFloat32(), x.AsFloat32(), outStrides, inStrides)
	case tensor.Float64:
		broadcastSlice(result.AsFloat64(), x.AsFloat64(), outStrides, inStrides)
	default:
		panic(fmt.Sprintf("broadcast: unsupported dtype %s", x.DType()))
	}
	return result
}

func broadcastSlice[T tensor.Float](dst, src []T, outStrides, inStrides []int) {
	for i := range dst {
		dst[i] = src[tensor.SourceIndex(i, outStrides, inStrides)]
	}
}
