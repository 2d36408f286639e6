// Package trace records the nodes built while a capture is active, so a
// forward computation can be inspected or replayed as a standalone graph.
package trace

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/born-ml/agraph/internal/graph"
)

// ErrActive is returned when starting a tracer that is already capturing.
var ErrActive = errors.New("tracer is already capturing")

// Tracer captures node-creation events from a graph.
//
// The capture buffer is safe for concurrent use: nodes may be created on
// other goroutines while the buffer is read. Start and Stop pairs across
// tracers on the same graph must nest strictly.
type Tracer struct {
	ctl sync.Mutex // guards pop; taken before the graph listener lock
	pop func() error

	mu      sync.Mutex // guards the capture buffer; taken after the graph listener lock
	order   []*graph.Node
	seen    map[*graph.Node]bool
	outputs map[*graph.Node]bool
}

// New creates an idle tracer with an empty buffer.
func New() *Tracer {
	return &Tracer{
		seen:    make(map[*graph.Node]bool),
		outputs: make(map[*graph.Node]bool),
	}
}

// Start makes t the innermost listener of g. Until Stop, every node created
// through g is appended to the buffer.
func (t *Tracer) Start(g *graph.Graph) error {
	t.ctl.Lock()
	defer t.ctl.Unlock()
	if t.pop != nil {
		return ErrActive
	}
	t.pop = g.PushListener(t)
	return nil
}

// Stop removes t from the listener stack, re-activating the enclosing
// capture if any. It fails with graph.ErrNotInnermost when a capture started
// after t is still active. Stopping an idle tracer does nothing.
func (t *Tracer) Stop() error {
	t.ctl.Lock()
	defer t.ctl.Unlock()
	if t.pop == nil {
		return nil
	}
	if err := t.pop(); err != nil {
		return err
	}
	t.pop = nil
	return nil
}

// Capture runs fn with t capturing on g, stopping it afterwards even if fn panics.
func (t *Tracer) Capture(g *graph.Graph, fn func() error) (err error) {
	if err := t.Start(g); err != nil {
		return err
	}
	defer func() {
		if stopErr := t.Stop(); stopErr != nil && err == nil {
			err = stopErr
		}
	}()
	return fn()
}

// OnNodeCreated implements graph.Listener.
func (t *Tracer) OnNodeCreated(n *graph.Node) {
	if n == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.seen[n] {
		return
	}
	t.seen[n] = true
	t.order = append(t.order, n)
}

// MarkOutput designates n as an explicit output of the trace.
func (t *Tracer) MarkOutput(n *graph.Node) {
	if n == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outputs[n] = true
}

// CapturedNodes returns a copy of the buffer in capture order.
func (t *Tracer) CapturedNodes() []*graph.Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*graph.Node(nil), t.order...)
}

// Outputs returns the explicitly marked outputs that were captured, in
// capture order. Without marks, it returns the captured nodes no other
// captured node consumes, falling back to the last captured node.
func (t *Tracer) Outputs() []*graph.Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outputsLocked()
}

func (t *Tracer) outputsLocked() []*graph.Node {
	var outs []*graph.Node
	if len(t.outputs) > 0 {
		for _, n := range t.order {
			if t.outputs[n] {
				outs = append(outs, n)
			}
		}
		return outs
	}

	consumed := make(map[*graph.Node]bool, len(t.order))
	for _, n := range t.order {
		for _, in := range n.Inputs() {
			consumed[in] = true
		}
	}
	for _, n := range t.order {
		if !consumed[n] {
			outs = append(outs, n)
		}
	}
	if len(outs) == 0 && len(t.order) > 0 {
		outs = append(outs, t.order[len(t.order)-1])
	}
	return outs
}

// TopoSort orders the captured nodes so operands come before their
// consumers. Edges to nodes outside the buffer are ignored. Nodes reachable
// from the outputs come first, then any disconnected captured nodes.
func (t *Tracer) TopoSort() []*graph.Node {
	t.mu.Lock()
	order := append([]*graph.Node(nil), t.order...)
	outs := t.outputsLocked()
	t.mu.Unlock()

	captured := make(map[*graph.Node]bool, len(order))
	for _, n := range order {
		captured[n] = true
	}
	visiting := make(map[*graph.Node]bool)
	done := make(map[*graph.Node]bool)
	sorted := make([]*graph.Node, 0, len(order))

	var visit func(n *graph.Node)
	visit = func(n *graph.Node) {
		if done[n] || visiting[n] {
			return
		}
		visiting[n] = true
		for _, in := range n.Inputs() {
			if captured[in] {
				visit(in)
			}
		}
		visiting[n] = false
		done[n] = true
		sorted = append(sorted, n)
	}
	for _, n := range outs {
		visit(n)
	}
	for _, n := range order {
		visit(n)
	}
	return sorted
}

// Clear empties the buffer and the output marks. An active capture keeps running.
func (t *Tracer) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.order = nil
	t.seen = make(map[*graph.Node]bool)
	t.outputs = make(map[*graph.Node]bool)
}
