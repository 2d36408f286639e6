package ops

import (
	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/tensor"
)

// Mul builds the element-wise product a * b with broadcasting.
//
// Backward pass:
//   - d(a*b)/da = b, so grad_a = outputGrad * b
//   - d(a*b)/db = a, so grad_b = outputGrad * a
func Mul(a, b *graph.Node) (*graph.Node, error) {
	return build(graph.OpMul, 0, a, b)
}

func mulEval(n *graph.Node) (*tensor.RawTensor, error) {
	v, err := operands(n)
	if err != nil {
		return nil, err
	}
	return backend.Mul(v[0], v[1]), nil
}

func mulVJP(n *graph.Node, grad *tensor.RawTensor) error {
	v, err := operands(n)
	if err != nil {
		return err
	}
	in := n.Inputs()
	if in[0].RequiresGrad() {
		accumulate(in[0], backend.Mul(grad, v[1]))
	}
	if in[1].RequiresGrad() {
		accumulate(in[1], backend.Mul(grad, v[0]))
	}
	return nil
}

func mulJVP(n *graph.Node, tangent func(*graph.Node) *tensor.RawTensor) (*tensor.RawTensor, error) {
	v, err := operands(n)
	if err != nil {
		return nil, err
	}
	in := n.Inputs()
	return backend.Add(
		backend.Mul(tangent(in[0]), v[1]),
		backend.Mul(v[0], tangent(in[1])),
	), nil
}
