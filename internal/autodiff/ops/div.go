package ops

import (
	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/tensor"
)

// Div builds the element-wise quotient a / b with broadcasting.
//
// Backward pass:
//   - d(a/b)/da = 1/b, so grad_a = outputGrad / b
//   - d(a/b)/db = -a/b², so grad_b = -outputGrad * a / b²
func Div(a, b *graph.Node) (*graph.Node, error) {
	return build(graph.OpDiv, 0, a, b)
}

func divEval(n *graph.Node) (*tensor.RawTensor, error) {
	v, err := operands(n)
	if err != nil {
		return nil, err
	}
	return backend.Div(v[0], v[1]), nil
}

func divVJP(n *graph.Node, grad *tensor.RawTensor) error {
	v, err := operands(n)
	if err != nil {
		return err
	}
	a, b := v[0], v[1]
	in := n.Inputs()
	if in[0].RequiresGrad() {
		accumulate(in[0], backend.Div(grad, b))
	}
	if in[1].RequiresGrad() {
		accumulate(in[1], backend.Neg(backend.Div(backend.Mul(grad, a), backend.Mul(b, b))))
	}
	return nil
}

func divJVP(n *graph.Node, tangent func(*graph.Node) *tensor.RawTensor) (*tensor.RawTensor, error) {
	v, err := operands(n)
	if err != nil {
		return nil, err
	}
	a, b := v[0], v[1]
	in := n.Inputs()
	// (ta*b - a*tb) / b²
	num := backend.Sub(backend.Mul(tangent(in[0]), b), backend.Mul(a, tangent(in[1])))
	return backend.Div(num, backend.Mul(b, b)), nil
}
