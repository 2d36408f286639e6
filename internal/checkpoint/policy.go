package checkpoint

import (
	"k8s.io/klog/v2"

	"github.com/born-ml/agraph/internal/graph"
)

// AutoEveryN walks the graph breadth-first from root and marks every
// non-leaf node whose 1-based visitation index is a multiple of n.
// n <= 0 does nothing. It returns the number of nodes newly marked.
func (m *Manager) AutoEveryN(root *graph.Node, n int, opts Options) int {
	if n <= 0 {
		return 0
	}
	marked := 0
	graph.BreadthFirst(root, func(node *graph.Node, index, _ int) bool {
		if index%n == 0 && !node.IsLeaf() && !node.IsCheckpoint() {
			m.Mark(node, opts)
			marked++
		}
		return true
	})
	klog.V(1).Infof("checkpoint: every-%d policy marked %d nodes", n, marked)
	return marked
}

// AutoByDepth walks the graph breadth-first from root (depth 0, operands one
// deeper) and marks every non-leaf node first reached at depth >= threshold.
// It returns the number of nodes newly marked.
func (m *Manager) AutoByDepth(root *graph.Node, threshold int, opts Options) int {
	marked := 0
	graph.BreadthFirst(root, func(node *graph.Node, _, depth int) bool {
		if depth >= threshold && !node.IsLeaf() && !node.IsCheckpoint() {
			m.Mark(node, opts)
			marked++
		}
		return true
	})
	klog.V(1).Infof("checkpoint: depth>=%d policy marked %d nodes", threshold, marked)
	return marked
}
