package ops

import (
	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/tensor"
)

// Exp builds e^x. The gradient reuses the output: grad_x = outputGrad * e^x.
func Exp(x *graph.Node) (*graph.Node, error) {
	return build(graph.OpExp, 0, x)
}

func expEval(n *graph.Node) (*tensor.RawTensor, error) {
	v, err := operands(n)
	if err != nil {
		return nil, err
	}
	return backend.Exp(v[0]), nil
}

func expVJP(n *graph.Node, grad *tensor.RawTensor) error {
	y, err := output(n)
	if err != nil {
		return err
	}
	accumulate(n.Inputs()[0], backend.Mul(grad, y))
	return nil
}

func expJVP(n *graph.Node, tangent func(*graph.Node) *tensor.RawTensor) (*tensor.RawTensor, error) {
	y, err := output(n)
	if err != nil {
		return nil, err
	}
	return backend.Mul(tangent(n.Inputs()[0]), y), nil
}
