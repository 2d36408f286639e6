package cpu

import (
	"fmt"

	"github.com/born-ml/agraph/internal/parallel"
	"github.com/born-ml/agraph/internal/tensor"
)

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b, func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, func(x, y float64) float64 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("div", a, b, func(x, y float64) float64 { return x / y })
}

// ZipWith applies f element-wise over a and b with broadcasting.
// Gradient rules use it for fused expressions such as relu masks.
func (cpu *CPUBackend) ZipWith(a, b *tensor.RawTensor, f func(x, y float64) float64) *tensor.RawTensor {
	return cpu.binary("zip", a, b, f)
}

func (cpu *CPUBackend) binary(name string, a, b *tensor.RawTensor, f func(x, y float64) float64) *tensor.RawTensor {
	checkSameDType(name, a, b)
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}
	result := newResult(name, outShape, a.DType())

	switch a.DType() {
	case tensor.Float32:
		binarySlices(cpu.par, result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape, needsBroadcast, f)
	case tensor.Float64:
		binarySlices(cpu.par, result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), a.Shape(), b.Shape(), outShape, needsBroadcast, f)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, a.DType()))
	}
	return result
}

func binarySlices[T tensor.Float](par parallel.Config, dst, a, b []T, aShape, bShape, outShape tensor.Shape, broadcast bool, f func(x, y float64) float64) {
	if !broadcast {
		// Fast path: same shape
		parallel.Ranges(len(dst), par, func(start, end int) {
			for i := start; i < end; i++ {
				dst[i] = T(f(float64(a[i]), float64(b[i])))
			}
		})
		return
	}

	outStrides := outShape.ComputeStrides()
	aStrides := aShape.BroadcastStrides(outShape)
	bStrides := bShape.BroadcastStrides(outShape)
	parallel.Ranges(len(dst), par, func(start, end int) {
		for i := start; i < end; i++ {
			x := a[tensor.SourceIndex(i, outStrides, aStrides)]
			y := b[tensor.SourceIndex(i, outStrides, bStrides)]
			dst[i] = T(f(float64(x), float64(y)))
		}
	})
}
