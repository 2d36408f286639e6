package ops

import (
	"github.com/pkg/errors"

	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/tensor"
)

// Dropout builds inverted dropout: each element is zeroed with probability p
// and survivors are scaled by 1/(1-p). The mask is drawn from the graph RNG
// at evaluation time and kept in the node scratch state, so it is lost on
// eviction and regenerated by recompute from the saved RNG state.
func Dropout(x *graph.Node, p float64) (*graph.Node, error) {
	if p < 0 || p >= 1 {
		return nil, errors.Errorf("dropout: probability %g outside [0, 1)", p)
	}
	return build(graph.OpDropout, p, x)
}

func dropoutEval(n *graph.Node) (*tensor.RawTensor, error) {
	v, err := operands(n)
	if err != nil {
		return nil, err
	}
	x := v[0]
	mask := backend.DropoutMask(x.Shape(), x.DType(), n.Param(), n.Graph().RNG().Float64)
	n.SetScratch(mask)
	return backend.Mul(x, mask), nil
}

func dropoutMask(n *graph.Node) (*tensor.RawTensor, error) {
	mask, ok := n.Scratch().(*tensor.RawTensor)
	if !ok || mask == nil {
		return nil, errors.Errorf("%s: dropout mask missing", n)
	}
	return mask, nil
}

func dropoutVJP(n *graph.Node, grad *tensor.RawTensor) error {
	mask, err := dropoutMask(n)
	if err != nil {
		return err
	}
	accumulate(n.Inputs()[0], backend.Mul(grad, mask))
	return nil
}

func dropoutJVP(n *graph.Node, tangent func(*graph.Node) *tensor.RawTensor) (*tensor.RawTensor, error) {
	mask, err := dropoutMask(n)
	if err != nil {
		return nil, err
	}
	return backend.Mul(tangent(n.Inputs()[0]), mask), nil
}
