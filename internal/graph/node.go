package graph

import (
	"fmt"

	"github.com/born-ml/agraph/internal/tensor"
)

// Node is one operation instance in the computation graph.
//
// A *Node is also the value handle: holding one keeps the node and, through
// its inputs, everything it depends on alive. The graph is a DAG so plain
// garbage collection reclaims it once the last handle is dropped.
//
// Node fields are not synchronized. Mutation (values, grads, eviction) assumes
// one writer per graph at a time.
type Node struct {
	id     int64
	op     OpKind
	name   string
	param  float64
	graph  *Graph
	inputs []*Node

	value   *tensor.RawTensor
	shape   tensor.Shape
	dtype   tensor.DataType
	version uint64
	scratch any

	grad         *tensor.RawTensor
	requiresGrad bool

	isCheckpoint bool
	snapshots    []Snapshot // nil until captured
	rngBlob      []byte
	hasRNG       bool
	evalRNG      []byte
}

// Snapshot is one saved operand of a checkpoint node.
// A nil Tensor is the placeholder for an operand that had no value at capture time.
// Scratch is the operand's op-private state, restored along with the value.
type Snapshot struct {
	Tensor  *tensor.RawTensor
	Version uint64
	Scratch any
}

// ID returns the node identity, unique within the process.
func (n *Node) ID() int64 { return n.id }

// Op returns the operation kind.
func (n *Node) Op() OpKind { return n.op }

// Name returns the optional debug label.
func (n *Node) Name() string { return n.name }

// SetName sets the debug label and returns n for chaining.
func (n *Node) SetName(name string) *Node {
	n.name = name
	return n
}

// Param returns the scalar attribute of the op (dropout probability); 0 otherwise.
func (n *Node) Param() float64 { return n.param }

// Graph returns the construction context the node was created in.
func (n *Node) Graph() *Graph { return n.graph }

// Inputs returns the operands in order. The slice must not be modified.
func (n *Node) Inputs() []*Node { return n.inputs }

// IsLeaf reports whether the node has no operands.
func (n *Node) IsLeaf() bool { return len(n.inputs) == 0 }

// String identifies the node in logs and error messages, e.g. `#7 Mul("h1")`.
func (n *Node) String() string {
	if n == nil {
		return "<nil node>"
	}
	if n.name == "" {
		return fmt.Sprintf("#%d %s", n.id, n.op)
	}
	return fmt.Sprintf("#%d %s(%q)", n.id, n.op, n.name)
}

// Value returns the forward value, or nil if it is unset or evicted.
func (n *Node) Value() *tensor.RawTensor { return n.value }

// HasValue reports whether the forward value is present.
func (n *Node) HasValue() bool { return !tensor.IsEmpty(n.value) }

// Shape returns the shape of the value as of its last assignment. It stays
// available after eviction.
func (n *Node) Shape() tensor.Shape { return n.shape }

// DType returns the dtype of the value as of its last assignment.
func (n *Node) DType() tensor.DataType { return n.dtype }

// Version counts external writes to the value through SetValue.
func (n *Node) Version() uint64 { return n.version }

// SetValue overwrites the value from outside the engine (in-place mutation,
// loading new inputs). It bumps Version so checkpoint snapshots taken earlier
// can be recognised as stale.
func (n *Node) SetValue(t *tensor.RawTensor) {
	n.setComputed(t)
	n.version++
}

// RestoreValue puts back a value that was saved at the given version.
// Used by snapshot restore; it does not count as a write.
func (n *Node) RestoreValue(t *tensor.RawTensor, version uint64) {
	n.setComputed(t)
	n.version = version
}

func (n *Node) setComputed(t *tensor.RawTensor) {
	n.value = t
	if t != nil {
		n.shape = t.Shape().Clone()
		n.dtype = t.DType()
	}
}

// ClearValue drops the value and the scratch state. Shape, dtype, version,
// grad and checkpoint data are kept.
func (n *Node) ClearValue() {
	n.value = nil
	n.scratch = nil
}

// Scratch returns op-private state produced by forward evaluation (e.g. a dropout mask).
func (n *Node) Scratch() any { return n.scratch }

// SetScratch stores op-private state. Cleared on eviction.
func (n *Node) SetScratch(s any) { n.scratch = s }

// Grad returns the accumulated gradient, or nil if none flowed here yet.
func (n *Node) Grad() *tensor.RawTensor { return n.grad }

// SetGrad replaces the gradient accumulator.
func (n *Node) SetGrad(g *tensor.RawTensor) { n.grad = g }

// RequiresGrad reports whether gradients are tracked through this node.
func (n *Node) RequiresGrad() bool { return n.requiresGrad }

// SetRequiresGrad toggles gradient tracking. A node with requiresGrad=false
// blocks gradient flow through itself.
func (n *Node) SetRequiresGrad(v bool) { n.requiresGrad = v }

// IsCheckpoint reports whether the node was marked as a checkpoint.
func (n *Node) IsCheckpoint() bool { return n.isCheckpoint }

// MarkCheckpoint sets the checkpoint flag. There is no way to clear it.
func (n *Node) MarkCheckpoint() { n.isCheckpoint = true }

// Snapshots returns the saved operand slots, nil if never captured.
func (n *Node) Snapshots() []Snapshot { return n.snapshots }

// HasSnapshot reports whether operand snapshots were captured.
func (n *Node) HasSnapshot() bool { return n.snapshots != nil }

// SetSnapshots replaces the operand snapshots. len(s) must equal len(Inputs()).
func (n *Node) SetSnapshots(s []Snapshot) {
	if s != nil && len(s) != len(n.inputs) {
		panic(fmt.Sprintf("node %s: %d snapshot slots for %d inputs", n, len(s), len(n.inputs)))
	}
	n.snapshots = s
}

// RNGState returns the saved RNG blob and whether one is present.
func (n *Node) RNGState() ([]byte, bool) { return n.rngBlob, n.hasRNG }

// SetRNGState stores the RNG blob used when recomputing the node.
func (n *Node) SetRNGState(blob []byte) {
	n.rngBlob = blob
	n.hasRNG = true
}

// ClearRNGState drops the saved RNG blob.
func (n *Node) ClearRNGState() {
	n.rngBlob = nil
	n.hasRNG = false
}

// EvalRNGState returns the RNG state observed right before the last forward
// evaluation of a stochastic node, nil for deterministic ops.
func (n *Node) EvalRNGState() []byte { return n.evalRNG }
