package ops

import (
	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/tensor"
)

// MatMul builds the 2D matrix product A @ B.
//
// Backward pass:
//   - grad_A = outputGrad @ B^T
//   - grad_B = A^T @ outputGrad
func MatMul(a, b *graph.Node) (*graph.Node, error) {
	return build(graph.OpMatMul, 0, a, b)
}

func matmulEval(n *graph.Node) (*tensor.RawTensor, error) {
	v, err := operands(n)
	if err != nil {
		return nil, err
	}
	return backend.MatMul(v[0], v[1]), nil
}

func matmulVJP(n *graph.Node, grad *tensor.RawTensor) error {
	v, err := operands(n)
	if err != nil {
		return err
	}
	in := n.Inputs()
	if in[0].RequiresGrad() {
		accumulate(in[0], backend.MatMul(grad, backend.Transpose(v[1])))
	}
	if in[1].RequiresGrad() {
		accumulate(in[1], backend.MatMul(backend.Transpose(v[0]), grad))
	}
	return nil
}

func matmulJVP(n *graph.Node, tangent func(*graph.Node) *tensor.RawTensor) (*tensor.RawTensor, error) {
	v, err := operands(n)
	if err != nil {
		return nil, err
	}
	in := n.Inputs()
	return backend.Add(
		backend.MatMul(tangent(in[0]), v[1]),
		backend.MatMul(v[0], tangent(in[1])),
	), nil
}
