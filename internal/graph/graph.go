// Package graph holds the computation graph model: nodes, the closed set of
// op kinds, deterministic topological ordering and the construction context.
//
// A Graph is the explicit context every node is created through. It carries
// the forward evaluator, the RNG stream for stochastic ops, the recompute
// observer and the stack of node-creation listeners used by tracers.
package graph

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/born-ml/agraph/internal/rng"
	"github.com/born-ml/agraph/internal/tensor"
)

// ErrNotInnermost is returned when popping a listener that is not on top of the stack.
var ErrNotInnermost = errors.New("listener is not the innermost active capture")

// nextNodeID is process-wide so node identities never collide across graphs.
var nextNodeID atomic.Int64

// Evaluator computes the forward value of a single node from its operands' values.
type Evaluator interface {
	Eval(n *Node) (*tensor.RawTensor, error)
}

// Listener receives node-creation events.
type Listener interface {
	OnNodeCreated(n *Node)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(n *Node)

// OnNodeCreated implements Listener.
func (f ListenerFunc) OnNodeCreated(n *Node) { f(n) }

// Observer is notified after every forward evaluation, initial or recompute.
type Observer interface {
	OnRecomputed(n *Node)
}

// Graph is the construction context for nodes.
type Graph struct {
	eval     Evaluator
	rng      *rng.Source
	observer Observer

	mu        sync.Mutex
	listeners []Listener
}

// Option configures a Graph.
type Option func(*Graph)

// WithSeed seeds the graph RNG stream.
func WithSeed(seed uint64) Option {
	return func(g *Graph) { g.rng = rng.New(seed) }
}

// WithObserver installs the recompute observer.
func WithObserver(o Observer) Option {
	return func(g *Graph) { g.observer = o }
}

// New creates a Graph that evaluates nodes with eval.
func New(eval Evaluator, opts ...Option) *Graph {
	g := &Graph{eval: eval}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rng.New(0)
	}
	return g
}

// RNG returns the random stream used by stochastic ops.
func (g *Graph) RNG() *rng.Source { return g.rng }

// PushListener makes l the active receiver of node-creation events and
// returns the function that removes it. Only the innermost listener is
// notified; pops must happen in LIFO order, otherwise pop returns
// ErrNotInnermost and leaves the stack unchanged.
func (g *Graph) PushListener(l Listener) (pop func() error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, l)
	depth := len(g.listeners)

	popped := false
	return func() error {
		g.mu.Lock()
		defer g.mu.Unlock()
		if popped {
			return nil
		}
		if len(g.listeners) != depth {
			return ErrNotInnermost
		}
		g.listeners[depth-1] = nil
		g.listeners = g.listeners[:depth-1]
		popped = true
		return nil
	}
}

// NumListeners returns the depth of the listener stack.
func (g *Graph) NumListeners() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.listeners)
}

func (g *Graph) notifyCreated(n *Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.listeners) > 0 {
		g.listeners[len(g.listeners)-1].OnNodeCreated(n)
	}
}

// Leaf creates an input node holding value.
func (g *Graph) Leaf(value *tensor.RawTensor, name string, requiresGrad bool) *Node {
	n := &Node{
		id:           nextNodeID.Add(1),
		op:           OpLeaf,
		name:         name,
		graph:        g,
		requiresGrad: requiresGrad,
	}
	n.setComputed(value)
	g.notifyCreated(n)
	return n
}

// Apply creates a node computing op over inputs and evaluates it right away.
// param is the op attribute (see Node.Param). The node requires grad when
// any input does.
func (g *Graph) Apply(op OpKind, name string, param float64, inputs ...*Node) (*Node, error) {
	if op == OpLeaf {
		return nil, errors.New("graph: use Leaf to create leaf nodes")
	}
	if len(inputs) != op.Arity() {
		return nil, errors.Errorf("graph: %s takes %d inputs, got %d", op, op.Arity(), len(inputs))
	}
	n := &Node{
		id:     nextNodeID.Add(1),
		op:     op,
		name:   name,
		param:  param,
		graph:  g,
		inputs: make([]*Node, len(inputs)),
	}
	for i, in := range inputs {
		if in == nil {
			return nil, errors.Errorf("graph: %s input %d is nil", op, i)
		}
		if in.graph != g {
			return nil, errors.Errorf("graph: %s input %s belongs to another graph", op, in)
		}
		n.inputs[i] = in
		n.requiresGrad = n.requiresGrad || in.requiresGrad
	}
	if err := g.Evaluate(n); err != nil {
		return nil, err
	}
	g.notifyCreated(n)
	return n, nil
}

// Evaluate runs the forward rule of n against its operands' current values
// and stores the result, then notifies the observer. It does not bump the
// node version: a recompute reproduces the value, it does not write a new one.
func (g *Graph) Evaluate(n *Node) error {
	if n.op.IsStochastic() {
		n.evalRNG = g.rng.Save()
	}
	out, err := g.eval.Eval(n)
	if err != nil {
		return errors.WithMessagef(err, "evaluating node %s", n)
	}
	n.setComputed(out)
	if g.observer != nil {
		g.observer.OnRecomputed(n)
	}
	return nil
}
