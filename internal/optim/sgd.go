package optim

import (
	"github.com/pkg/errors"

	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/tensor"
)

// SGD implements stochastic gradient descent with optional momentum.
//
// Update rule:
//
//	velocity = momentum * velocity + grad
//	param    = param - lr * velocity
//
// With zero momentum the velocity is the gradient itself.
type SGD struct {
	params     []*graph.Node
	lr         float64
	momentum   float64
	velocities map[*graph.Node]*tensor.RawTensor
}

// SGDConfig holds the SGD hyper-parameters.
type SGDConfig struct {
	LR       float64 // default 0.01
	Momentum float64 // in [0, 1), default 0
}

// NewSGD creates an SGD optimizer over params, which must be leaves.
func NewSGD(params []*graph.Node, config SGDConfig) (*SGD, error) {
	if err := checkParams(params); err != nil {
		return nil, err
	}
	if config.Momentum < 0 || config.Momentum >= 1 {
		return nil, errors.Errorf("sgd: momentum must be in [0, 1), got %g", config.Momentum)
	}
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*graph.Node]*tensor.RawTensor),
	}, nil
}

// Step implements Optimizer.
func (s *SGD) Step() error {
	for _, p := range s.params {
		grad, value, err := gradOf(p)
		if err != nil {
			return err
		}
		if grad == nil {
			continue
		}
		step := grad
		if s.momentum != 0 {
			if v, ok := s.velocities[p]; ok {
				step = backend.Add(backend.MulScalar(v, s.momentum), grad)
			} else {
				step = grad.Clone()
			}
			s.velocities[p] = step
		}
		p.SetValue(backend.Sub(value, backend.MulScalar(step, s.lr)))
	}
	return nil
}

// ZeroGrad implements Optimizer.
func (s *SGD) ZeroGrad() { zeroGrad(s.params) }

// LR implements Optimizer.
func (s *SGD) LR() float64 { return s.lr }
