package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/agraph/internal/parallel"
	"github.com/born-ml/agraph/internal/tensor"
)

// Exp computes element-wise exponential: exp(x).
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.Map(x, math.Exp)
}

// Log computes element-wise natural logarithm: ln(x).
// Panics on non-positive input.
func (cpu *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	for i, v := range x.Float64s() {
		if v <= 0 {
			panic(fmt.Sprintf("log: non-positive value at index %d: %f", i, v))
		}
	}
	return cpu.Map(x, math.Log)
}

// Tanh computes element-wise hyperbolic tangent.
func (cpu *CPUBackend) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.Map(x, math.Tanh)
}

// Sigmoid computes σ(x) = 1 / (1 + exp(-x)).
func (cpu *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.Map(x, func(v float64) float64 { return 1.0 / (1.0 + math.Exp(-v)) })
}

// ReLU computes max(0, x).
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.Map(x, func(v float64) float64 {
		if v > 0 {
			return v
		}
		return 0
	})
}

// Neg computes -x.
func (cpu *CPUBackend) Neg(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.Map(x, func(v float64) float64 { return -v })
}

// Sign computes -1, 0 or 1 per element.
func (cpu *CPUBackend) Sign(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.Map(x, func(v float64) float64 {
		switch {
		case v > 0:
			return 1
		case v < 0:
			return -1
		default:
			return 0
		}
	})
}

// MulScalar multiplies every element by s.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	return cpu.Map(x, func(v float64) float64 { return v * s })
}

// Map applies f element-wise and returns a new tensor of the same shape.
func (cpu *CPUBackend) Map(x *tensor.RawTensor, f func(float64) float64) *tensor.RawTensor {
	result := newResult("map", x.Shape(), x.DType())
	switch x.DType() {
	case tensor.Float32:
		mapSlice(cpu.par, result.AsFloat32(), x.AsFloat32(), f)
	case tensor.Float64:
		mapSlice(cpu.par, result.AsFloat64(), x.AsFloat64(), f)
	default:
		panic(fmt.Sprintf("map: unsupported dtype %s (only float32/float64 supported)", x.DType()))
	}
	return result
}

func mapSlice[T tensor.Float](par parallel.Config, dst, src []T, f func(float64) float64) {
	parallel.Ranges(len(dst), par, func(start, end int) {
		for i := start; i < end; i++ {
			dst[i] = T(f(float64(src[i])))
		}
	})
}
