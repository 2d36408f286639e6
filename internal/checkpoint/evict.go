package checkpoint

import (
	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"

	"github.com/born-ml/agraph/internal/graph"
)

// Report summarises an eviction.
type Report struct {
	Nodes int    // values cleared
	Bytes uint64 // bytes of values cleared
}

// String implements fmt.Stringer.
func (r Report) String() string {
	return humanize.Comma(int64(r.Nodes)) + " values, " + humanize.Bytes(r.Bytes)
}

// Protected returns the nodes Evict keeps: those reachable from root without
// passing through a checkpoint. Checkpoints themselves are protected; their
// operands are protected only when reachable along another path.
func Protected(root *graph.Node) map[*graph.Node]bool {
	protected := make(map[*graph.Node]bool)
	graph.BreadthFirst(root, func(n *graph.Node, _, _ int) bool {
		protected[n] = true
		return !n.IsCheckpoint()
	})
	return protected
}

// Evict clears the value and scratch state of every node reachable from root
// that is not protected (see Protected). Leaves are kept unless the manager
// was built WithLeafEviction.
func (m *Manager) Evict(root *graph.Node) Report {
	var report Report
	if root == nil {
		return report
	}
	protected := Protected(root)
	for _, n := range graph.TopoFrom(root) {
		if protected[n] || !n.HasValue() {
			continue
		}
		if n.IsLeaf() && !m.evictLeaves {
			continue
		}
		report.Nodes++
		report.Bytes += uint64(n.Value().ByteSize())
		n.ClearValue()
	}
	m.metrics.EvictedNodes.Add(float64(report.Nodes))
	m.metrics.EvictedBytes.Add(float64(report.Bytes))
	klog.V(1).Infof("checkpoint: evicted %s", report)
	return report
}
