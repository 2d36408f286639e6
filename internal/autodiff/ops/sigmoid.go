package ops

import (
	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/tensor"
)

// Sigmoid builds σ(x) = 1 / (1 + e^-x).
//
// Backward pass: dσ/dx = σ(x) * (1 - σ(x)), computed from the output.
func Sigmoid(x *graph.Node) (*graph.Node, error) {
	return build(graph.OpSigmoid, 0, x)
}

func sigmoidEval(n *graph.Node) (*tensor.RawTensor, error) {
	v, err := operands(n)
	if err != nil {
		return nil, err
	}
	return backend.Sigmoid(v[0]), nil
}

func sigmoidDerivative(g, y float64) float64 { return g * y * (1 - y) }

func sigmoidVJP(n *graph.Node, grad *tensor.RawTensor) error {
	y, err := output(n)
	if err != nil {
		return err
	}
	accumulate(n.Inputs()[0], backend.ZipWith(grad, y, sigmoidDerivative))
	return nil
}

func sigmoidJVP(n *graph.Node, tangent func(*graph.Node) *tensor.RawTensor) (*tensor.RawTensor, error) {
	y, err := output(n)
	if err != nil {
		return nil, err
	}
	return backend.ZipWith(tangent(n.Inputs()[0]), y, sigmoidDerivative), nil
}
