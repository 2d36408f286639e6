package optim

import (
	"math"

	"github.com/pkg/errors"

	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/tensor"
)

// Adam implements Adaptive Moment Estimation.
//
// Update rule:
//
//	m_t   = beta1 * m_{t-1} + (1-beta1) * grad
//	v_t   = beta2 * v_{t-1} + (1-beta2) * grad²
//	m_hat = m_t / (1 - beta1^t)
//	v_hat = v_t / (1 - beta2^t)
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)
type Adam struct {
	params []*graph.Node
	lr     float64
	beta1  float64
	beta2  float64
	eps    float64
	t      int
	m      map[*graph.Node]*tensor.RawTensor
	v      map[*graph.Node]*tensor.RawTensor
}

// AdamConfig holds the Adam hyper-parameters. Zero fields take the defaults
// LR 0.001, Betas {0.9, 0.999}, Eps 1e-8.
type AdamConfig struct {
	LR    float64
	Betas [2]float64
	Eps   float64
}

// NewAdam creates an Adam optimizer over params, which must be leaves.
func NewAdam(params []*graph.Node, config AdamConfig) (*Adam, error) {
	if err := checkParams(params); err != nil {
		return nil, err
	}
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas == [2]float64{} {
		config.Betas = [2]float64{0.9, 0.999}
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	for _, b := range config.Betas {
		if b < 0 || b >= 1 {
			return nil, errors.Errorf("adam: betas must be in [0, 1), got %v", config.Betas)
		}
	}
	return &Adam{
		params: params,
		lr:     config.LR,
		beta1:  config.Betas[0],
		beta2:  config.Betas[1],
		eps:    config.Eps,
		m:      make(map[*graph.Node]*tensor.RawTensor),
		v:      make(map[*graph.Node]*tensor.RawTensor),
	}, nil
}

// Step implements Optimizer.
func (a *Adam) Step() error {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))

	for _, p := range a.params {
		grad, value, err := gradOf(p)
		if err != nil {
			return err
		}
		if grad == nil {
			continue
		}
		m, ok := a.m[p]
		if !ok {
			m = tensor.ZerosLike(grad)
			a.v[p] = tensor.ZerosLike(grad)
		}
		b1, b2 := a.beta1, a.beta2
		m = backend.ZipWith(m, grad, func(m, g float64) float64 { return b1*m + (1-b1)*g })
		v := backend.ZipWith(a.v[p], grad, func(v, g float64) float64 { return b2*v + (1-b2)*g*g })
		a.m[p], a.v[p] = m, v

		lr, eps := a.lr, a.eps
		update := backend.ZipWith(m, v, func(m, v float64) float64 {
			return lr * (m / c1) / (math.Sqrt(v/c2) + eps)
		})
		p.SetValue(backend.Sub(value, update))
	}
	return nil
}

// ZeroGrad implements Optimizer.
func (a *Adam) ZeroGrad() { zeroGrad(a.params) }

// LR implements Optimizer.
func (a *Adam) LR() float64 { return a.lr }
