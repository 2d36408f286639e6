// Package cpu implements the tensor kernels used by forward evaluation and by
// the gradient rules.
//
// Kernels follow the usual convention for this layer: they allocate a fresh
// result, never write into their inputs, and panic on invalid shapes or dtypes.
// Callers that need an error instead wrap the call (see autodiff/ops).
package cpu

import (
	"fmt"

	"github.com/born-ml/agraph/internal/parallel"
	"github.com/born-ml/agraph/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
// Elementwise kernels split large loops across goroutines; results do not
// depend on the split.
type CPUBackend struct {
	par parallel.Config
}

// New creates a CPU backend using parallel.DefaultConfig.
func New() *CPUBackend {
	return &CPUBackend{par: parallel.DefaultConfig()}
}

// NewWithConfig creates a CPU backend with an explicit parallel configuration.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{par: cfg}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// newResult allocates a zeroed result tensor or panics with the kernel name.
func newResult(name string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, dtype)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}
	return result
}

func checkSameDType(name string, a, b *tensor.RawTensor) {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", name, a.DType(), b.DType()))
	}
}
