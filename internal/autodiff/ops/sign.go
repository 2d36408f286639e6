package ops

import (
	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/tensor"
)

// Sign builds sign(x) in {-1, 0, 1}. It is piecewise constant: there is no
// reverse rule, and its tangent is always zero.
func Sign(x *graph.Node) (*graph.Node, error) {
	return build(graph.OpSign, 0, x)
}

func signEval(n *graph.Node) (*tensor.RawTensor, error) {
	v, err := operands(n)
	if err != nil {
		return nil, err
	}
	return backend.Sign(v[0]), nil
}

func signJVP(n *graph.Node, _ func(*graph.Node) *tensor.RawTensor) (*tensor.RawTensor, error) {
	return tensor.Zeros(n.Shape(), n.DType()), nil
}
