package ops

import (
	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/tensor"
)

// Sum builds the sum of all elements of x as a scalar.
// Backward pass: the output gradient is broadcast back to x's shape.
func Sum(x *graph.Node) (*graph.Node, error) {
	return build(graph.OpSum, 0, x)
}

// Mean builds the average of all elements of x as a scalar.
// Backward pass: grad_x = broadcast(outputGrad / N).
func Mean(x *graph.Node) (*graph.Node, error) {
	return build(graph.OpMean, 0, x)
}

func sumEval(n *graph.Node) (*tensor.RawTensor, error) {
	v, err := operands(n)
	if err != nil {
		return nil, err
	}
	return backend.Sum(v[0]), nil
}

func sumVJP(n *graph.Node, grad *tensor.RawTensor) error {
	x := n.Inputs()[0]
	accumulate(x, backend.BroadcastTo(grad, x.Shape()))
	return nil
}

func sumJVP(n *graph.Node, tangent func(*graph.Node) *tensor.RawTensor) (*tensor.RawTensor, error) {
	return backend.Sum(tangent(n.Inputs()[0])), nil
}

func meanEval(n *graph.Node) (*tensor.RawTensor, error) {
	v, err := operands(n)
	if err != nil {
		return nil, err
	}
	return backend.Mean(v[0]), nil
}

func meanVJP(n *graph.Node, grad *tensor.RawTensor) error {
	x := n.Inputs()[0]
	scaled := backend.MulScalar(grad, 1/float64(x.Shape().NumElements()))
	accumulate(x, backend.BroadcastTo(scaled, x.Shape()))
	return nil
}

func meanJVP(n *graph.Node, tangent func(*graph.Node) *tensor.RawTensor) (*tensor.RawTensor, error) {
	return backend.Mean(tangent(n.Inputs()[0])), nil
}
