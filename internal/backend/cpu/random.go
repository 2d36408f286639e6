package cpu

import (
	"fmt"

	"github.com/born-ml/agraph/internal/tensor"
)

// DropoutMask draws an inverted-dropout mask: each element is 0 with
// probability p and 1/(1-p) otherwise. uniform must return values in [0, 1).
//
// The mask is a pure function of the sequence produced by uniform, so
// replaying the same generator state reproduces it bit for bit.
func (cpu *CPUBackend) DropoutMask(shape tensor.Shape, dtype tensor.DataType, p float64, uniform func() float64) *tensor.RawTensor {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("dropout: probability must be in [0, 1), got %g", p))
	}
	scale := 1.0 / (1.0 - p)
	mask := newResult("dropout", shape, dtype)

	switch dtype {
	case tensor.Float32:
		fillMask(mask.AsFloat32(), p, scale, uniform)
	case tensor.Float64:
		fillMask(mask.AsFloat64(), p, scale, uniform)
	default:
		panic(fmt.Sprintf("dropout: unsupported dtype %s", dtype))
	}
	return mask
}

func fillMask[T tensor.Float](dst []T, p, scale float64, uniform func() float64) {
	for i := range dst {
		if uniform() >= p {
			dst[i] = T(scale)
		}
	}
}
