package main

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/klog/v2"

	"github.com/born-ml/agraph/internal/autodiff"
	"github.com/born-ml/agraph/internal/checkpoint"
	"github.com/born-ml/agraph/internal/config"
	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/optim"
	"github.com/born-ml/agraph/internal/tensor"
)

// stepResult summarises one forward/backward/update step.
type stepResult struct {
	loss        float64
	nodes       int
	marked      int
	activations uint64
	evicted     checkpoint.Report
}

// runResult summarises a training run.
type runResult struct {
	steps       []stepResult
	evaluations int
	grads       []uint64 // fingerprints of the last step's weight gradients
	weights     []uint64 // fingerprints of the final weights
}

// newManager translates the checkpoint settings into manager options.
func newManager(c config.Checkpoint, reg prometheus.Registerer) *checkpoint.Manager {
	return checkpoint.New(
		checkpoint.WithMetrics(checkpoint.NewMetrics(reg)),
		checkpoint.WithStrictVersions(c.StrictVersions),
		checkpoint.WithLeafEviction(c.EvictLeaves),
	)
}

func newOptimizer(t config.Train, params []*graph.Node) (optim.Optimizer, error) {
	if t.Optimizer == config.OptimizerAdam {
		return optim.NewAdam(params, optim.AdamConfig{LR: t.LR})
	}
	return optim.NewSGD(params, optim.SGDConfig{LR: t.LR, Momentum: t.Momentum})
}

// applyPolicy marks checkpoints on the pass ending at root according to c.
func applyPolicy(m *checkpoint.Manager, root *graph.Node, c config.Checkpoint) int {
	opts := checkpoint.Options{SaveRNG: c.SaveRNG}
	switch c.Policy {
	case config.PolicyEveryN:
		return m.AutoEveryN(root, c.Every, opts)
	case config.PolicyDepth:
		return m.AutoByDepth(root, c.Depth, opts)
	default:
		return 0
	}
}

// train runs cfg.Train.Steps steps on the demo network. Each step builds a
// forward pass, applies the checkpoint policy, evicts what the policy allows,
// runs backward from the loss and updates the weights.
func train(cfg *config.Config, reg prometheus.Registerer) (*runResult, error) {
	counter := graph.NewRecomputeCounter()
	net := newMLP(cfg.Model, cfg.Seed, counter)
	m := newManager(cfg.Checkpoint, reg)
	opt, err := newOptimizer(cfg.Train, net.weights)
	if err != nil {
		return nil, err
	}

	res := &runResult{}
	for i := 0; i < cfg.Train.Steps; i++ {
		loss, nodes, err := net.forward()
		if err != nil {
			return nil, errors.WithMessagef(err, "step %d", i)
		}
		sr := stepResult{
			loss:        loss.Value().Item(),
			nodes:       len(nodes),
			activations: residentBytes(nodes),
		}
		sr.marked = applyPolicy(m, loss, cfg.Checkpoint)
		if sr.marked > 0 {
			m.CaptureSnapshots(loss)
			sr.evicted = m.Evict(loss)
		}
		klog.V(1).Infof("step %d: loss %.6f, %d nodes, %d checkpoints, evicted %s",
			i, sr.loss, sr.nodes, sr.marked, sr.evicted)

		if err := autodiff.Backward(loss, autodiff.WithManager(m)); err != nil {
			return nil, errors.WithMessagef(err, "step %d: backward", i)
		}
		m.Release(loss)

		if i == cfg.Train.Steps-1 {
			for _, w := range net.weights {
				res.grads = append(res.grads, tensor.Fingerprint(w.Grad()))
			}
		}
		if err := opt.Step(); err != nil {
			return nil, errors.WithMessagef(err, "step %d", i)
		}
		opt.ZeroGrad()
		res.steps = append(res.steps, sr)
	}

	res.evaluations = counter.Total()
	for _, w := range net.weights {
		res.weights = append(res.weights, tensor.Fingerprint(w.Value()))
	}
	return res, nil
}
