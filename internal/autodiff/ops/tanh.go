package ops

import (
	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/tensor"
)

// Tanh builds tanh(x).
//
// Backward pass: d(tanh(x))/dx = 1 - tanh²(x), computed from the output.
func Tanh(x *graph.Node) (*graph.Node, error) {
	return build(graph.OpTanh, 0, x)
}

func tanhEval(n *graph.Node) (*tensor.RawTensor, error) {
	v, err := operands(n)
	if err != nil {
		return nil, err
	}
	return backend.Tanh(v[0]), nil
}

func tanhDerivative(g, y float64) float64 { return g * (1 - y*y) }

func tanhVJP(n *graph.Node, grad *tensor.RawTensor) error {
	y, err := output(n)
	if err != nil {
		return err
	}
	accumulate(n.Inputs()[0], backend.ZipWith(grad, y, tanhDerivative))
	return nil
}

func tanhJVP(n *graph.Node, tangent func(*graph.Node) *tensor.RawTensor) (*tensor.RawTensor, error) {
	y, err := output(n)
	if err != nil {
		return nil, err
	}
	return backend.ZipWith(tangent(n.Inputs()[0]), y, tanhDerivative), nil
}
