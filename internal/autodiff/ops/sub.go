package ops

import (
	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/tensor"
)

// Sub builds a - b with broadcasting.
//
// Backward pass:
//   - grad_a = outputGrad
//   - grad_b = -outputGrad
func Sub(a, b *graph.Node) (*graph.Node, error) {
	return build(graph.OpSub, 0, a, b)
}

func subEval(n *graph.Node) (*tensor.RawTensor, error) {
	v, err := operands(n)
	if err != nil {
		return nil, err
	}
	return backend.Sub(v[0], v[1]), nil
}

func subVJP(n *graph.Node, grad *tensor.RawTensor) error {
	in := n.Inputs()
	accumulate(in[0], grad)
	if in[1].RequiresGrad() {
		accumulate(in[1], backend.Neg(grad))
	}
	return nil
}

func subJVP(n *graph.Node, tangent func(*graph.Node) *tensor.RawTensor) (*tensor.RawTensor, error) {
	in := n.Inputs()
	return backend.Sub(tangent(in[0]), tangent(in[1])), nil
}
