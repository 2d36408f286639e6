package ops

import (
	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/tensor"
)

// Log builds the natural logarithm of x. Evaluation fails for x <= 0.
//
// Backward pass: grad_x = outputGrad / x.
func Log(x *graph.Node) (*graph.Node, error) {
	return build(graph.OpLog, 0, x)
}

func logEval(n *graph.Node) (*tensor.RawTensor, error) {
	v, err := operands(n)
	if err != nil {
		return nil, err
	}
	return backend.Log(v[0]), nil
}

func logVJP(n *graph.Node, grad *tensor.RawTensor) error {
	v, err := operands(n)
	if err != nil {
		return err
	}
	accumulate(n.Inputs()[0], backend.Div(grad, v[0]))
	return nil
}

func logJVP(n *graph.Node, tangent func(*graph.Node) *tensor.RawTensor) (*tensor.RawTensor, error) {
	v, err := operands(n)
	if err != nil {
		return nil, err
	}
	return backend.Div(tangent(n.Inputs()[0]), v[0]), nil
}
