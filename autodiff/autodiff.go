// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff is the public entry point of the engine: graph
// construction, reverse and forward differentiation, activation
// checkpointing and graph capture.
//
// Example:
//
//	g := autodiff.NewGraph()
//	a := g.Leaf(tensor.Scalar(3, tensor.Float64), "a", true)
//	b, _ := autodiff.Mul(a, a)
//	c, _ := autodiff.Add(b, a)
//	if err := autodiff.Backward(c); err != nil {
//	    return err
//	}
//	// a.Grad() holds 2*3 + 1 = 7.
package autodiff

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/born-ml/agraph/internal/autodiff"
	"github.com/born-ml/agraph/internal/autodiff/ops"
	"github.com/born-ml/agraph/internal/checkpoint"
	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/tensor"
	"github.com/born-ml/agraph/internal/trace"
)

// Graph is the construction context every node is created through.
type Graph = graph.Graph

// Node is a vertex of the computation graph and the handle callers hold.
type Node = graph.Node

// OpKind identifies the operation that produced a node.
type OpKind = graph.OpKind

// GraphOption configures a Graph.
type GraphOption = graph.Option

// Registry maps op kinds to their forward, VJP and JVP rules.
type Registry = ops.Registry

// Option configures Backward and JVP.
type Option = autodiff.Option

// Manager owns activation checkpointing.
type Manager = checkpoint.Manager

// ManagerOption configures a Manager.
type ManagerOption = checkpoint.Option

// CheckpointOptions tunes a single checkpoint mark.
type CheckpointOptions = checkpoint.Options

// EvictionReport summarises an eviction.
type EvictionReport = checkpoint.Report

// Tracer captures the nodes created while it is active.
type Tracer = trace.Tracer

// Errors returned by the engine.
var (
	ErrNoJVPRule     = autodiff.ErrNoJVPRule
	ErrNoForwardRule = ops.ErrNoForwardRule
	ErrHandlerPanic  = ops.ErrHandlerPanic
	ErrNotCheckpoint = checkpoint.ErrNotCheckpoint
	ErrNoSnapshot    = checkpoint.ErrNoSnapshot
	ErrMissingValue  = checkpoint.ErrMissingValue
	ErrStaleSnapshot = checkpoint.ErrStaleSnapshot
	ErrNotInnermost  = graph.ErrNotInnermost
	ErrTraceActive   = trace.ErrActive
)

// NewGraph creates a graph evaluated with the default op rules.
func NewGraph(opts ...GraphOption) *Graph {
	return graph.New(ops.Default(), opts...)
}

// WithGraphSeed seeds the RNG stream used by stochastic ops.
func WithGraphSeed(seed uint64) GraphOption {
	return graph.WithSeed(seed)
}

// Operators. Each creates a node on the graph of its first input and
// evaluates it eagerly.
var (
	Add       = ops.Add
	Sub       = ops.Sub
	Mul       = ops.Mul
	Div       = ops.Div
	Neg       = ops.Neg
	MatMul    = ops.MatMul
	Transpose = ops.Transpose
	Exp       = ops.Exp
	Log       = ops.Log
	Tanh      = ops.Tanh
	Sigmoid   = ops.Sigmoid
	ReLU      = ops.ReLU
	Sign      = ops.Sign
	Sum       = ops.Sum
	Mean      = ops.Mean
	MSELoss   = ops.MSELoss
	Dropout   = ops.Dropout
)

// Backward accumulates d(root)/d(node) into the grad of every node reachable
// from root that requires grad.
func Backward(root *Node, opts ...Option) error {
	return autodiff.Backward(root, opts...)
}

// ZeroGrad resets the grads of every node reachable from root.
func ZeroGrad(root *Node) {
	autodiff.ZeroGrad(root)
}

// JVP returns the directional derivative of root along the leaf tangents in seeds.
func JVP(root *Node, seeds map[*Node]*tensor.RawTensor, opts ...Option) (*tensor.RawTensor, error) {
	return autodiff.JVP(root, seeds, opts...)
}

// WithSeed sets the gradient seeded into the root by Backward.
func WithSeed(seed *tensor.RawTensor) Option {
	return autodiff.WithSeed(seed)
}

// WithRegistry replaces the default op rules.
func WithRegistry(r *Registry) Option {
	return autodiff.WithRegistry(r)
}

// WithManager makes the engines recompute evicted values through m.
func WithManager(m *Manager) Option {
	return autodiff.WithManager(m)
}

// NewRegistry returns a private copy of the default op rules.
func NewRegistry() *Registry {
	return ops.NewRegistry()
}

// NewManager creates a checkpoint manager.
func NewManager(opts ...ManagerOption) *Manager {
	return checkpoint.New(opts...)
}

// WithMetrics registers the manager's counters with reg.
func WithMetrics(reg prometheus.Registerer) ManagerOption {
	return checkpoint.WithMetrics(checkpoint.NewMetrics(reg))
}

// WithStrictVersions makes restoring over an operand rewritten after capture an error.
func WithStrictVersions(strict bool) ManagerOption {
	return checkpoint.WithStrictVersions(strict)
}

// WithLeafEviction lets Evict clear leaf values too.
func WithLeafEviction(evict bool) ManagerOption {
	return checkpoint.WithLeafEviction(evict)
}

// NewTracer creates an idle tracer.
func NewTracer() *Tracer {
	return trace.New()
}
