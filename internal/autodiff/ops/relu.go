package ops

import (
	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/tensor"
)

// ReLU builds max(0, x).
//
// Backward pass: d(ReLU(x))/dx = 1 if x > 0, else 0.
func ReLU(x *graph.Node) (*graph.Node, error) {
	return build(graph.OpReLU, 0, x)
}

func reluEval(n *graph.Node) (*tensor.RawTensor, error) {
	v, err := operands(n)
	if err != nil {
		return nil, err
	}
	return backend.ReLU(v[0]), nil
}

func reluGate(g, x float64) float64 {
	if x > 0 {
		return g
	}
	return 0
}

func reluVJP(n *graph.Node, grad *tensor.RawTensor) error {
	v, err := operands(n)
	if err != nil {
		return err
	}
	accumulate(n.Inputs()[0], backend.ZipWith(grad, v[0], reluGate))
	return nil
}

func reluJVP(n *graph.Node, tangent func(*graph.Node) *tensor.RawTensor) (*tensor.RawTensor, error) {
	v, err := operands(n)
	if err != nil {
		return nil, err
	}
	return backend.ZipWith(tangent(n.Inputs()[0]), v[0], reluGate), nil
}
