// Package autodiff implements the differentiation engines over graph nodes.
//
// Architecture:
//   - Backward: reverse mode. Walks the reverse topological order from a root
//     and invokes each node's VJP rule, which accumulates into operand grads.
//   - JVP: forward mode. Walks the topological order and propagates tangents in
//     a per-call table; no node state is written.
//   - Both engines repair evicted values through a checkpoint.Manager before a
//     rule reads them.
//
// Usage:
//
//	g := graph.New(ops.Default())
//	a := g.Leaf(tensor.Scalar(3, tensor.Float64), "a", true)
//	c := must.M1(ops.Add(must.M1(ops.Mul(a, a)), a))
//	if err := autodiff.Backward(c); err != nil { ... }
//	fmt.Println(a.Grad().Item()) // dc/da = 2a + 1 = 7
package autodiff

import (
	"k8s.io/klog/v2"

	"github.com/born-ml/agraph/internal/autodiff/ops"
	"github.com/born-ml/agraph/internal/checkpoint"
	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/tensor"
)

// StepObserver is notified once per node visited by an engine, before its rule runs.
// For Backward the tensor is the node gradient; for JVP it is nil.
type StepObserver func(n *graph.Node, grad *tensor.RawTensor)

type config struct {
	seed     *tensor.RawTensor
	registry *ops.Registry
	manager  *checkpoint.Manager
	observer StepObserver
}

// Option configures a Backward or JVP call.
type Option func(*config)

// WithSeed sets the gradient seeded at the root. It must have the root's shape.
// Defaults to ones.
func WithSeed(seed *tensor.RawTensor) Option {
	return func(c *config) { c.seed = seed }
}

// WithRegistry sets the rule registry. Defaults to ops.Default().
func WithRegistry(r *ops.Registry) Option {
	return func(c *config) { c.registry = r }
}

// WithManager sets the checkpoint manager used to regenerate evicted values.
func WithManager(m *checkpoint.Manager) Option {
	return func(c *config) { c.manager = m }
}

// WithStepObserver replaces the default per-step observer, which logs at klog V(3).
func WithStepObserver(o StepObserver) Option {
	return func(c *config) { c.observer = o }
}

func newConfig(opts []Option) *config {
	c := &config{}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = ops.Default()
	}
	if c.manager == nil {
		c.manager = checkpoint.New()
	}
	if c.observer == nil {
		c.observer = logStep
	}
	return c
}

func logStep(n *graph.Node, grad *tensor.RawTensor) {
	if !klog.V(3).Enabled() {
		return
	}
	if grad == nil {
		klog.Infof("autodiff: step %s %v", n, n.Shape())
		return
	}
	klog.Infof("autodiff: step %s grad %s", n, grad)
}
