package ops

import (
	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/tensor"
)

// MSELoss builds mean((pred - target)²) as a scalar.
//
// Backward pass, with d = pred - target and N elements:
//   - grad_pred = outputGrad * 2d / N
//   - grad_target = -grad_pred
func MSELoss(pred, target *graph.Node) (*graph.Node, error) {
	return build(graph.OpMSELoss, 0, pred, target)
}

func mseEval(n *graph.Node) (*tensor.RawTensor, error) {
	v, err := operands(n)
	if err != nil {
		return nil, err
	}
	d := backend.Sub(v[0], v[1])
	return backend.Mean(backend.Mul(d, d)), nil
}

// mseScaledDiff returns 2(pred - target)/N.
func mseScaledDiff(n *graph.Node) (*tensor.RawTensor, error) {
	v, err := operands(n)
	if err != nil {
		return nil, err
	}
	d := backend.Sub(v[0], v[1])
	return backend.MulScalar(d, 2/float64(d.NumElements())), nil
}

func mseVJP(n *graph.Node, grad *tensor.RawTensor) error {
	d, err := mseScaledDiff(n)
	if err != nil {
		return err
	}
	gd := backend.Mul(d, grad)
	in := n.Inputs()
	accumulate(in[0], gd)
	if in[1].RequiresGrad() {
		accumulate(in[1], backend.Neg(gd))
	}
	return nil
}

func mseJVP(n *graph.Node, tangent func(*graph.Node) *tensor.RawTensor) (*tensor.RawTensor, error) {
	d, err := mseScaledDiff(n)
	if err != nil {
		return nil, err
	}
	in := n.Inputs()
	return backend.Sum(backend.Mul(d, backend.Sub(tangent(in[0]), tangent(in[1])))), nil
}
