// Package checkpoint trades memory for compute during reverse-mode
// differentiation. Marked nodes keep copies of their operands; everything
// they make unnecessary can be evicted and regenerated on demand during
// backward.
//
// Node states: Unmarked -> Marked (with snapshot) -> Evicted <-> Recomputed.
package checkpoint

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/agraph/internal/graph"
)

var (
	// ErrNotCheckpoint is returned when recomputing a node that was never marked.
	ErrNotCheckpoint = errors.New("node is not a checkpoint")

	// ErrNoSnapshot is returned when recomputing a checkpoint without captured operands.
	ErrNoSnapshot = errors.New("checkpoint has no operand snapshot")

	// ErrMissingValue is returned when an evicted value is needed and nothing can regenerate it.
	ErrMissingValue = errors.New("value is missing and cannot be regenerated")

	// ErrStaleSnapshot is returned, in strict mode, when an operand was written after its snapshot.
	ErrStaleSnapshot = errors.New("operand was modified after the snapshot was taken")
)

// Options configures how a node is marked.
type Options struct {
	// SaveRNG records the RNG state so a stochastic node recomputes bit-identically.
	SaveRNG bool
}

// Manager runs the checkpoint operations over graphs.
// It holds no per-graph state; all checkpoint data lives on the nodes.
type Manager struct {
	metrics        *Metrics
	strictVersions bool
	evictLeaves    bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics reports lifecycle events to m.
func WithMetrics(m *Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithStrictVersions makes restoring a snapshot over an operand written since
// capture fail with ErrStaleSnapshot. By default the snapshot wins and a
// warning is logged.
func WithStrictVersions(strict bool) Option {
	return func(mgr *Manager) { mgr.strictVersions = strict }
}

// WithLeafEviction lets Evict clear unprotected leaf values. Leaves cannot be
// regenerated, so this only suits graphs whose leaves are all captured by
// checkpoint snapshots.
func WithLeafEviction(evict bool) Option {
	return func(mgr *Manager) { mgr.evictLeaves = evict }
}

// New creates a Manager. Without WithMetrics, counters are created but not registered.
func New(opts ...Option) *Manager {
	m := &Manager{}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = NewMetrics(nil)
	}
	return m
}

// Mark flags n as a checkpoint and snapshots its operands. Marking an
// already marked node does nothing. The node keeps its own value.
func (m *Manager) Mark(n *graph.Node, opts Options) {
	if n == nil || n.IsCheckpoint() {
		return
	}
	n.MarkCheckpoint()
	m.capture(n)
	if opts.SaveRNG {
		blob := n.EvalRNGState()
		if blob == nil {
			blob = n.Graph().RNG().Save()
		}
		n.SetRNGState(blob)
	}
	m.metrics.Marks.Inc()
	klog.V(2).Infof("checkpoint: marked %s (save_rng=%v)", n, opts.SaveRNG)
}

// capture replaces n's snapshots with deep copies of its operands' current
// values. Operands without a value get an empty placeholder slot.
func (m *Manager) capture(n *graph.Node) {
	inputs := n.Inputs()
	snaps := make([]graph.Snapshot, len(inputs))
	for i, in := range inputs {
		snaps[i].Version = in.Version()
		if in.HasValue() {
			snaps[i].Tensor = in.Value().Clone()
			snaps[i].Scratch = in.Scratch()
		}
	}
	n.SetSnapshots(snaps)
	m.metrics.Snapshots.Inc()
}

// CaptureSnapshots re-captures the operand snapshots of every checkpoint
// reachable from root, overwriting older ones. Call it right before Evict.
// It returns the number of checkpoints refreshed.
func (m *Manager) CaptureSnapshots(root *graph.Node) int {
	count := 0
	for _, n := range graph.TopoFrom(root) {
		if n.IsCheckpoint() {
			m.capture(n)
			count++
		}
	}
	klog.V(1).Infof("checkpoint: captured snapshots for %d checkpoints", count)
	return count
}

// Release drops the snapshots and saved RNG state of every checkpoint
// reachable from root, typically once a training step is done. The nodes
// stay marked; a later CaptureSnapshots re-arms them.
func (m *Manager) Release(root *graph.Node) int {
	count := 0
	for _, n := range graph.TopoFrom(root) {
		if n.IsCheckpoint() && (n.HasSnapshot() || hasRNG(n)) {
			n.SetSnapshots(nil)
			n.ClearRNGState()
			count++
		}
	}
	klog.V(1).Infof("checkpoint: released %d checkpoints", count)
	return count
}

func hasRNG(n *graph.Node) bool {
	_, ok := n.RNGState()
	return ok
}
