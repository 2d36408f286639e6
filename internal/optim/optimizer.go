// Package optim updates leaf values from their accumulated gradients.
//
// Parameters are leaf nodes. Step writes each new value with SetValue, so the
// node version advances and checkpoint snapshots taken before the step are
// detected as stale.
//
// Example:
//
//	opt := optim.NewSGD(weights, optim.SGDConfig{LR: 0.05, Momentum: 0.9})
//	for range steps {
//	    loss := forward()
//	    if err := autodiff.Backward(loss); err != nil { ... }
//	    if err := opt.Step(); err != nil { ... }
//	    opt.ZeroGrad()
//	}
package optim

import (
	"github.com/pkg/errors"

	"github.com/born-ml/agraph/internal/backend/cpu"
	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/tensor"
)

// ErrNotLeaf is returned when an optimizer is given a computed node.
var ErrNotLeaf = errors.New("optimizer parameters must be leaves")

// Optimizer applies one update per Step.
type Optimizer interface {
	// Step updates every parameter that has a gradient. Parameters without
	// one did not take part in the last backward pass and are skipped.
	Step() error

	// ZeroGrad clears the gradients of all parameters.
	ZeroGrad()

	// LR returns the learning rate.
	LR() float64
}

var backend = cpu.New()

func checkParams(params []*graph.Node) error {
	for i, p := range params {
		if p == nil || !p.IsLeaf() {
			return errors.Wrapf(ErrNotLeaf, "parameter %d (%s)", i, p)
		}
	}
	return nil
}

// gradOf returns the gradient and value of p, or nil when p has no gradient.
func gradOf(p *graph.Node) (grad, value *tensor.RawTensor, err error) {
	grad = p.Grad()
	if grad == nil {
		return nil, nil, nil
	}
	if !p.HasValue() {
		return nil, nil, errors.Errorf("optimizer: parameter %s has no value", p)
	}
	return grad, p.Value(), nil
}

func zeroGrad(params []*graph.Node) {
	for _, p := range params {
		p.SetGrad(nil)
	}
}
