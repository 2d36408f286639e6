package autodiff

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/agraph/internal/autodiff/ops"
	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/tensor"
)

// Backward accumulates into every node reachable from root that requires grad
// the gradient of root with respect to that node.
//
// Algorithm:
//  1. Seed root's grad (ones, or WithSeed) if root requires grad.
//  2. Walk the topological order in reverse, consumers before operands.
//  3. For each node holding a grad: notify the step observer, repair evicted
//     values through the checkpoint manager, then run the VJP rule.
//
// Ops without a VJP rule are skipped with a warning. Any other failure aborts
// the pass with the grads accumulated so far left in place; call ZeroGrad
// before retrying. A nil root does nothing.
func Backward(root *graph.Node, opts ...Option) error {
	if root == nil {
		return nil
	}
	cfg := newConfig(opts)
	order := graph.TopoFrom(root)

	if root.RequiresGrad() {
		seed := cfg.seed
		if seed == nil {
			seed = tensor.Ones(root.Shape(), root.DType())
		} else if !seed.Shape().Equal(root.Shape()) {
			return errors.Errorf("backward: seed shape %v does not match root %s shape %v",
				seed.Shape(), root, root.Shape())
		}
		root.SetGrad(seed.Clone())
	}

	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		grad := n.Grad()
		if !n.RequiresGrad() || n.IsLeaf() || grad == nil {
			continue
		}
		cfg.observer(n, grad)

		if err := cfg.manager.Repair(n); err != nil {
			return errors.WithMessagef(err, "backward at %s", n)
		}

		vjp := cfg.registry.VJP(n.Op())
		if vjp == nil {
			klog.Warningf("backward: no VJP registered for %s, gradient stops here", n)
			continue
		}
		if err := ops.Guard(func() error { return vjp(n, grad) }); err != nil {
			return errors.WithMessagef(err, "backward: VJP of %s", n)
		}
	}
	return nil
}

// ZeroGrad sets the grad of every node reachable from root that requires grad
// to zeros of the node's shape. It works on evicted nodes too.
func ZeroGrad(root *graph.Node) {
	for _, n := range graph.TopoFrom(root) {
		if n.RequiresGrad() {
			n.SetGrad(tensor.Zeros(n.Shape(), n.DType()))
		}
	}
}
