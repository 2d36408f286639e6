// Package ops defines the per-op rules of the autodiff engine and the
// operator layer that builds graph nodes.
//
// Every op kind has up to three rules:
//   - Eval: forward value from the operand values (graph.Evaluator)
//   - VJP: additively accumulates the operand gradients given the output gradient
//   - JVP: output tangent given the operand tangents
//
// Supported operations:
//   - Add, Sub, Mul, Div: broadcasting element-wise arithmetic
//   - Neg, Exp, Log, Tanh, Sigmoid, ReLU: element-wise unary math
//   - MatMul, Transpose: 2D linear algebra
//   - Sum, Mean, MSELoss: reductions to a scalar
//   - Dropout: inverted dropout drawing from the graph RNG
//   - Sign: forward and JVP only, it has no VJP
package ops

import (
	"fmt"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/tensor"
)

var (
	// ErrNoForwardRule is returned when evaluating a node whose kind has no eval rule.
	ErrNoForwardRule = errors.New("no forward rule registered")

	// ErrHandlerPanic marks an error converted from a panic inside a rule.
	ErrHandlerPanic = errors.New("rule panicked")
)

// EvalFunc computes the forward value of n from its operand values.
type EvalFunc func(n *graph.Node) (*tensor.RawTensor, error)

// VJPFunc accumulates the contribution of grad (dL/dn) into the grads of n's operands.
// It must add to existing grads, never overwrite them.
type VJPFunc func(n *graph.Node, grad *tensor.RawTensor) error

// JVPFunc returns the tangent of n given a lookup of its operands' tangents.
type JVPFunc func(n *graph.Node, tangent func(*graph.Node) *tensor.RawTensor) (*tensor.RawTensor, error)

// Registry maps op kinds to their rules. The zero value has no rules; use
// NewRegistry or Default.
type Registry struct {
	mu   sync.RWMutex
	eval [graph.NumOpKinds]EvalFunc
	vjp  [graph.NumOpKinds]VJPFunc
	jvp  [graph.NumOpKinds]JVPFunc
}

var defaultRegistry = NewRegistry()

// Default returns the shared registry with the built-in rules.
// Do not modify it; use NewRegistry to get one that is safe to override.
func Default() *Registry { return defaultRegistry }

// NewRegistry returns a registry populated with the built-in rules.
func NewRegistry() *Registry {
	r := &Registry{}
	for k := graph.OpKind(0); int(k) < graph.NumOpKinds; k++ {
		r.eval[k] = defaultEval(k)
		r.vjp[k] = defaultVJP(k)
		r.jvp[k] = defaultJVP(k)
	}
	return r
}

func defaultEval(k graph.OpKind) EvalFunc {
	switch k {
	case graph.OpLeaf:
		return nil
	case graph.OpAdd:
		return addEval
	case graph.OpSub:
		return subEval
	case graph.OpMul:
		return mulEval
	case graph.OpDiv:
		return divEval
	case graph.OpNeg:
		return negEval
	case graph.OpMatMul:
		return matmulEval
	case graph.OpTranspose:
		return transposeEval
	case graph.OpExp:
		return expEval
	case graph.OpLog:
		return logEval
	case graph.OpTanh:
		return tanhEval
	case graph.OpSigmoid:
		return sigmoidEval
	case graph.OpReLU:
		return reluEval
	case graph.OpSum:
		return sumEval
	case graph.OpMean:
		return meanEval
	case graph.OpMSELoss:
		return mseEval
	case graph.OpDropout:
		return dropoutEval
	case graph.OpSign:
		return signEval
	}
	panic(fmt.Sprintf("ops: no eval case for op kind %d", k))
}

func defaultVJP(k graph.OpKind) VJPFunc {
	switch k {
	case graph.OpLeaf, graph.OpSign:
		return nil
	case graph.OpAdd:
		return addVJP
	case graph.OpSub:
		return subVJP
	case graph.OpMul:
		return mulVJP
	case graph.OpDiv:
		return divVJP
	case graph.OpNeg:
		return negVJP
	case graph.OpMatMul:
		return matmulVJP
	case graph.OpTranspose:
		return transposeVJP
	case graph.OpExp:
		return expVJP
	case graph.OpLog:
		return logVJP
	case graph.OpTanh:
		return tanhVJP
	case graph.OpSigmoid:
		return sigmoidVJP
	case graph.OpReLU:
		return reluVJP
	case graph.OpSum:
		return sumVJP
	case graph.OpMean:
		return meanVJP
	case graph.OpMSELoss:
		return mseVJP
	case graph.OpDropout:
		return dropoutVJP
	}
	panic(fmt.Sprintf("ops: no vjp case for op kind %d", k))
}

func defaultJVP(k graph.OpKind) JVPFunc {
	switch k {
	case graph.OpLeaf:
		return nil
	case graph.OpAdd:
		return addJVP
	case graph.OpSub:
		return subJVP
	case graph.OpMul:
		return mulJVP
	case graph.OpDiv:
		return divJVP
	case graph.OpNeg:
		return negJVP
	case graph.OpMatMul:
		return matmulJVP
	case graph.OpTranspose:
		return transposeJVP
	case graph.OpExp:
		return expJVP
	case graph.OpLog:
		return logJVP
	case graph.OpTanh:
		return tanhJVP
	case graph.OpSigmoid:
		return sigmoidJVP
	case graph.OpReLU:
		return reluJVP
	case graph.OpSum:
		return sumJVP
	case graph.OpMean:
		return meanJVP
	case graph.OpMSELoss:
		return mseJVP
	case graph.OpDropout:
		return dropoutJVP
	case graph.OpSign:
		return signJVP
	}
	panic(fmt.Sprintf("ops: no jvp case for op kind %d", k))
}

// Eval implements graph.Evaluator. Panics raised by kernels are returned as
// errors wrapping ErrHandlerPanic.
func (r *Registry) Eval(n *graph.Node) (*tensor.RawTensor, error) {
	fn := r.EvalRule(n.Op())
	if fn == nil {
		return nil, errors.Wrapf(ErrNoForwardRule, "op %s", n.Op())
	}
	var out *tensor.RawTensor
	err := Guard(func() error {
		var err error
		out, err = fn(n)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EvalRule returns the forward rule for op, nil if none.
func (r *Registry) EvalRule(op graph.OpKind) EvalFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.eval[op]
}

// VJP returns the reverse rule for op, nil if none.
func (r *Registry) VJP(op graph.OpKind) VJPFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.vjp[op]
}

// JVP returns the forward-mode rule for op, nil if none.
func (r *Registry) JVP(op graph.OpKind) JVPFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.jvp[op]
}

// SetEval replaces the forward rule of op. A nil fn removes it.
func (r *Registry) SetEval(op graph.OpKind, fn EvalFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.eval[op] = fn
}

// SetVJP replaces the reverse rule of op. A nil fn removes it.
func (r *Registry) SetVJP(op graph.OpKind, fn VJPFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vjp[op] = fn
}

// SetJVP replaces the forward-mode rule of op. A nil fn removes it.
func (r *Registry) SetJVP(op graph.OpKind, fn JVPFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jvp[op] = fn
}

// Guard runs fn and converts a panic into an error wrapping ErrHandlerPanic.
func Guard(fn func() error) error {
	var err error
	exception := exceptions.Try(func() { err = fn() })
	if exception == nil {
		return err
	}
	return errors.Wrapf(ErrHandlerPanic, "%v", exception)
}
