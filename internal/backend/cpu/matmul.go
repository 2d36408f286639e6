package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/agraph/internal/tensor"
)

// MatMul performs matrix multiplication.
// For 2D tensors: (M, K) @ (K, N) -> (M, N).
// Float64 goes through gonum's Dense.Mul; float32 uses the naive loop.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	checkSameDType("matmul", a, b)
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]
	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}

	result := newResult("matmul", tensor.Shape{m, n}, a.DType())

	switch a.DType() {
	case tensor.Float32:
		matmulFloat32(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), m, k, n)
	case tensor.Float64:
		// Dense wraps the backing slices without copying.
		c := mat.NewDense(m, n, result.AsFloat64())
		c.Mul(mat.NewDense(m, k, a.AsFloat64()), mat.NewDense(k, n, b.AsFloat64()))
	default:
		panic(fmt.Sprintf("matmul: unsupported dtype %s", a.DType()))
	}

	return result
}

// matmulFloat32 performs naive matrix multiplication for float32.
// C[i,j] = sum_k A[i,k] * B[k,j]
func matmulFloat32(c, a, b []float32, m, k, n int) {
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			sum := float32(0)
			for kIdx := 0; kIdx < k; kIdx++ {
				sum += a[i*k+kIdx] * b[kIdx*n+j]
			}
			c[i*n+j] = sum
		}
	}
}

// Transpose swaps the two axes of a 2D tensor.
func (cpu *CPUBackend) Transpose(x *tensor.RawTensor) *tensor.RawTensor {
	shape := x.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("transpose: only 2D tensors supported, got %dD", len(shape)))
	}
	rows, cols := shape[0], shape[1]
	result := newResult("transpose", tensor.Shape{cols, rows}, x.DType())

	switch x.DType() {
	case tensor.Float32:
		transposeSlice(result.AsFloat32(), x.AsFloat32(), rows, cols)
	case tensor.Float64:
		transposeSlice(result.AsFloat64(), x.AsFloat64(), rows, cols)
	default:
		panic(fmt.Sprintf("transpose: unsupported dtype %s", x.DType()))
	}
	return result
}

func transposeSlice[T tensor.Float](dst, src []T, rows, cols int) {
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dst[j*rows+i] = src[i*cols+j]
		}
	}
}
