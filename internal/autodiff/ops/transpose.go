package ops

import (
	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/tensor"
)

// Transpose builds the transpose of a 2D x. Its gradient is the transposed output gradient.
func Transpose(x *graph.Node) (*graph.Node, error) {
	return build(graph.OpTranspose, 0, x)
}

func transposeEval(n *graph.Node) (*tensor.RawTensor, error) {
	v, err := operands(n)
	if err != nil {
		return nil, err
	}
	return backend.Transpose(v[0]), nil
}

func transposeVJP(n *graph.Node, grad *tensor.RawTensor) error {
	accumulate(n.Inputs()[0], backend.Transpose(grad))
	return nil
}

func transposeJVP(n *graph.Node, tangent func(*graph.Node) *tensor.RawTensor) (*tensor.RawTensor, error) {
	return backend.Transpose(tangent(n.Inputs()[0])), nil
}
