package ops

import (
	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/tensor"
)

// Add builds a + b with broadcasting.
//
// Backward pass:
//   - d(a+b)/da = 1, so grad_a = outputGrad (reduced to a's shape)
//   - d(a+b)/db = 1, so grad_b = outputGrad (reduced to b's shape)
func Add(a, b *graph.Node) (*graph.Node, error) {
	return build(graph.OpAdd, 0, a, b)
}

func addEval(n *graph.Node) (*tensor.RawTensor, error) {
	v, err := operands(n)
	if err != nil {
		return nil, err
	}
	return backend.Add(v[0], v[1]), nil
}

func addVJP(n *graph.Node, grad *tensor.RawTensor) error {
	in := n.Inputs()
	accumulate(in[0], grad)
	accumulate(in[1], grad)
	return nil
}

func addJVP(n *graph.Node, tangent func(*graph.Node) *tensor.RawTensor) (*tensor.RawTensor, error) {
	in := n.Inputs()
	return backend.Add(tangent(in[0]), tangent(in[1])), nil
}
