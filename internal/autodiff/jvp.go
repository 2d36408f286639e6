package autodiff

import (
	"github.com/pkg/errors"

	"github.com/born-ml/agraph/internal/autodiff/ops"
	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/tensor"
)

// ErrNoJVPRule is returned when forward mode reaches a non-leaf op without a JVP rule.
var ErrNoJVPRule = errors.New("no JVP rule registered")

// JVP computes the directional derivative of root along the given seed
// tangents, keyed by node. Unseeded nodes start from zero tangents. A
// non-leaf node's tangent is always produced by its JVP rule.
//
// Tangents live in a table owned by the call; grads and other node state are
// not touched, except that evicted forward values are regenerated in
// topological order (checkpoints from their snapshots, other nodes from their
// operands). A nil root returns a nil tensor.
func JVP(root *graph.Node, seeds map[*graph.Node]*tensor.RawTensor, opts ...Option) (*tensor.RawTensor, error) {
	if root == nil {
		return nil, nil
	}
	cfg := newConfig(opts)
	order := graph.TopoFrom(root)
	tangents := make(map[*graph.Node]*tensor.RawTensor, len(order))
	lookup := func(n *graph.Node) *tensor.RawTensor {
		if t, ok := tangents[n]; ok {
			return t
		}
		return tensor.Zeros(n.Shape(), n.DType())
	}

	for _, n := range order {
		cfg.observer(n, nil)
		if n.IsLeaf() {
			t, err := seedFor(n, seeds)
			if err != nil {
				return nil, err
			}
			tangents[n] = t
			continue
		}

		jvp := cfg.registry.JVP(n.Op())
		if jvp == nil {
			return nil, errors.Wrapf(ErrNoJVPRule, "jvp: %s", n)
		}
		if err := cfg.manager.Materialize(n); err != nil {
			return nil, errors.WithMessagef(err, "jvp at %s", n)
		}
		var out *tensor.RawTensor
		err := ops.Guard(func() error {
			var err error
			out, err = jvp(n, lookup)
			return err
		})
		if err != nil {
			return nil, errors.WithMessagef(err, "jvp: rule of %s", n)
		}
		tangents[n] = out
	}
	return tangents[root], nil
}

func seedFor(n *graph.Node, seeds map[*graph.Node]*tensor.RawTensor) (*tensor.RawTensor, error) {
	seed, ok := seeds[n]
	if !ok || seed == nil {
		return tensor.Zeros(n.Shape(), n.DType()), nil
	}
	if !seed.Shape().Equal(n.Shape()) {
		return nil, errors.Errorf("jvp: seed shape %v does not match %s shape %v", seed.Shape(), n, n.Shape())
	}
	return seed, nil
}
