package ops

import (
	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/tensor"
)

// Neg builds -x.
func Neg(x *graph.Node) (*graph.Node, error) {
	return build(graph.OpNeg, 0, x)
}

func negEval(n *graph.Node) (*tensor.RawTensor, error) {
	v, err := operands(n)
	if err != nil {
		return nil, err
	}
	return backend.Neg(v[0]), nil
}

func negVJP(n *graph.Node, grad *tensor.RawTensor) error {
	accumulate(n.Inputs()[0], backend.Neg(grad))
	return nil
}

func negJVP(n *graph.Node, tangent func(*graph.Node) *tensor.RawTensor) (*tensor.RawTensor, error) {
	return backend.Neg(tangent(n.Inputs()[0])), nil
}
