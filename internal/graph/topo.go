package graph

// TopoFrom returns every node reachable from root through operand edges,
// ordered so each node follows all of its operands. Nodes appear once even
// when shared (diamonds). The order is a depth-first post-order visiting
// operands left to right, so it is identical across calls on an unchanged
// graph. A nil root yields nil.
func TopoFrom(root *Node) []*Node {
	if root == nil {
		return nil
	}

	type frame struct {
		node *Node
		next int
	}
	visited := map[*Node]bool{root: true}
	stack := []frame{{node: root}}
	var order []*Node

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.node.inputs) {
			in := top.node.inputs[top.next]
			top.next++
			if in != nil && !visited[in] {
				visited[in] = true
				stack = append(stack, frame{node: in})
			}
			continue
		}
		order = append(order, top.node)
		stack = stack[:len(stack)-1]
	}
	return order
}

// BreadthFirst visits every node reachable from root exactly once in
// breadth-first order (operands left to right). visit receives the 1-based
// visitation index and the depth (root = 0) at which the node was first
// dequeued; returning false stops the walk from descending into its operands
// from that node.
func BreadthFirst(root *Node, visit func(n *Node, index, depth int) bool) {
	if root == nil {
		return
	}

	type item struct {
		node  *Node
		depth int
	}
	visited := make(map[*Node]bool)
	queue := []item{{node: root}}
	index := 0

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.node == nil || visited[cur.node] {
			continue
		}
		visited[cur.node] = true
		index++

		if !visit(cur.node, index, cur.depth) {
			continue
		}
		for _, in := range cur.node.inputs {
			if in != nil {
				queue = append(queue, item{node: in, depth: cur.depth + 1})
			}
		}
	}
}
