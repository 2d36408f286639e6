package checkpoint

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/agraph/internal/graph"
)

// Recompute regenerates the value of checkpoint n. Every operand slot with a
// snapshot is restored into the operand; an operand without snapshot and
// without value is recomputed first if it is a checkpoint, otherwise the call
// fails with ErrMissingValue. Saved RNG state is replayed around the
// evaluation and the surrounding RNG stream is put back afterwards.
func (m *Manager) Recompute(n *graph.Node) error {
	err := m.recompute(n)
	if err != nil {
		m.metrics.RecomputeFailures.Inc()
		return err
	}
	m.metrics.Recomputes.Inc()
	return nil
}

func (m *Manager) recompute(n *graph.Node) error {
	if n == nil {
		return errors.WithStack(ErrNotCheckpoint)
	}
	if !n.IsCheckpoint() {
		return errors.Wrapf(ErrNotCheckpoint, "recompute %s", n)
	}
	if !n.HasSnapshot() {
		return errors.Wrapf(ErrNoSnapshot, "recompute %s", n)
	}

	for i, in := range n.Inputs() {
		snap := n.Snapshots()[i]
		if snap.Tensor != nil {
			if err := m.restore(n, in, snap); err != nil {
				return err
			}
			continue
		}
		if in.HasValue() {
			continue
		}
		if !in.IsCheckpoint() {
			return errors.Wrapf(ErrMissingValue, "recompute %s: operand %d (%s)", n, i, in)
		}
		if err := m.Recompute(in); err != nil {
			return errors.WithMessagef(err, "recompute %s: operand %d", n, i)
		}
	}

	if err := m.evaluate(n); err != nil {
		return err
	}
	klog.V(2).Infof("checkpoint: recomputed %s", n)
	return nil
}

// restore writes a snapshot back into operand in of checkpoint n.
func (m *Manager) restore(n, in *graph.Node, snap graph.Snapshot) error {
	if in.Version() != snap.Version {
		if m.strictVersions {
			return errors.Wrapf(ErrStaleSnapshot, "%s operand %s: version %d, snapshot %d",
				n, in, in.Version(), snap.Version)
		}
		m.metrics.StaleRestores.Inc()
		klog.Warningf("checkpoint: %s restores operand %s from snapshot version %d over version %d",
			n, in, snap.Version, in.Version())
	}
	in.RestoreValue(snap.Tensor.Clone(), snap.Version)
	in.SetScratch(snap.Scratch)
	return nil
}

func (m *Manager) evaluate(n *graph.Node) error {
	blob, ok := n.RNGState()
	if !ok {
		if n.Op().IsStochastic() {
			klog.Warningf("checkpoint: recomputing stochastic %s without saved RNG state", n)
		}
		return n.Graph().Evaluate(n)
	}
	return m.evaluateWith(n, blob)
}

// regenerate re-evaluates a node that is not being recomputed as a
// checkpoint. A stochastic node replays the RNG state of its last forward
// evaluation, so the regenerated value and scratch match the evicted ones.
func (m *Manager) regenerate(n *graph.Node) error {
	if !n.Op().IsStochastic() {
		return n.Graph().Evaluate(n)
	}
	blob, ok := n.RNGState()
	if !ok {
		blob = n.EvalRNGState()
	}
	if len(blob) == 0 {
		return errors.Wrapf(ErrMissingValue, "stochastic %s has no RNG state to replay", n)
	}
	return m.evaluateWith(n, blob)
}

// evaluateWith evaluates n with the graph RNG set to blob and puts the
// surrounding stream back afterwards.
func (m *Manager) evaluateWith(n *graph.Node, blob []byte) error {
	g := n.Graph()
	rng := g.RNG()
	surrounding := rng.Save()
	if err := rng.Restore(blob); err != nil {
		return errors.WithMessagef(err, "recompute %s", n)
	}
	err := g.Evaluate(n)
	if restoreErr := rng.Restore(surrounding); restoreErr != nil && err == nil {
		err = restoreErr
	}
	return err
}

// Repair makes the value of n and the values of all its operands present,
// which is what a gradient or tangent rule of n reads. A checkpoint with its
// own value first refills empty operands from its snapshot; one without its
// own value is recomputed. Remaining empty operands are recomputed when they
// are checkpoints. Anything else empty fails with ErrMissingValue.
func (m *Manager) Repair(n *graph.Node) error {
	if n == nil {
		return nil
	}
	if !n.HasValue() {
		if !n.IsCheckpoint() {
			return errors.Wrapf(ErrMissingValue, "%s", n)
		}
		if err := m.Recompute(n); err != nil {
			return err
		}
	} else if n.IsCheckpoint() && n.HasSnapshot() {
		for i, in := range n.Inputs() {
			snap := n.Snapshots()[i]
			if in.HasValue() || snap.Tensor == nil {
				continue
			}
			if err := m.restore(n, in, snap); err != nil {
				return err
			}
		}
	}

	for i, in := range n.Inputs() {
		if in.HasValue() {
			continue
		}
		if !in.IsCheckpoint() {
			return errors.Wrapf(ErrMissingValue, "%s: operand %d (%s)", n, i, in)
		}
		if err := m.Recompute(in); err != nil {
			return errors.WithMessagef(err, "%s: operand %d", n, i)
		}
	}
	return nil
}

// Materialize makes the value of n present for a forward traversal, which
// visits operands before consumers. A checkpoint with a snapshot is
// recomputed; any other non-leaf node is evaluated from its operands' current
// values, failing with ErrMissingValue if one of them is empty. Stochastic
// nodes replay their recorded RNG state and fail without one, so the
// regenerated value is the one a later backward pass would have seen.
func (m *Manager) Materialize(n *graph.Node) error {
	if n == nil || n.HasValue() {
		return nil
	}
	if n.IsCheckpoint() && n.HasSnapshot() {
		return m.Recompute(n)
	}
	if n.IsLeaf() {
		return errors.Wrapf(ErrMissingValue, "leaf %s", n)
	}
	for i, in := range n.Inputs() {
		if !in.HasValue() {
			return errors.Wrapf(ErrMissingValue, "%s: operand %d (%s)", n, i, in)
		}
	}
	return m.regenerate(n)
}

// ComputeForwardValues evaluates, in topological order, every non-leaf node
// reachable from root whose value is empty. Stochastic nodes replay their
// recorded RNG state. It stops at the first failure.
func (m *Manager) ComputeForwardValues(root *graph.Node) error {
	count := 0
	for _, n := range graph.TopoFrom(root) {
		if n.IsLeaf() || n.HasValue() {
			continue
		}
		if err := m.regenerate(n); err != nil {
			return err
		}
		count++
	}
	klog.V(1).Infof("checkpoint: computed %d forward values", count)
	return nil
}
