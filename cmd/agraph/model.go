package main

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/born-ml/agraph/internal/autodiff/ops"
	"github.com/born-ml/agraph/internal/config"
	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/rng"
	"github.com/born-ml/agraph/internal/tensor"
	"github.com/born-ml/agraph/internal/trace"
)

// mlp is the demo network: layers of dropout(tanh(h @ W)) under an MSE loss.
// The leaves live for the whole run; every forward pass builds fresh op nodes
// on top of them.
type mlp struct {
	g       *graph.Graph
	x, y    *graph.Node
	weights []*graph.Node
	dropout float64
}

// uniform draws a tensor with values in [-scale, scale).
func uniform(src *rng.Source, scale float64, shape ...int) *tensor.RawTensor {
	data := make([]float64, tensor.Shape(shape).NumElements())
	for i := range data {
		data[i] = (2*src.Float64() - 1) * scale
	}
	return tensor.MustFromFloat64s(data, shape)
}

func newMLP(m config.Model, seed uint64, obs graph.Observer) *mlp {
	opts := []graph.Option{graph.WithSeed(seed)}
	if obs != nil {
		opts = append(opts, graph.WithObserver(obs))
	}
	g := graph.New(ops.Default(), opts...)
	net := &mlp{g: g, dropout: m.Dropout}

	net.x = g.Leaf(uniform(g.RNG(), 1, m.Batch, m.Width), "x", false)
	net.y = g.Leaf(uniform(g.RNG(), 1, m.Batch, m.Width), "y", false)
	scale := 1 / math.Sqrt(float64(m.Width))
	for i := 0; i < m.Layers; i++ {
		w := g.Leaf(uniform(g.RNG(), scale, m.Width, m.Width), fmt.Sprintf("w%d", i), true)
		net.weights = append(net.weights, w)
	}
	return net
}

// forward builds one pass under a tracer and returns the loss together with
// every node the pass created, operands first.
func (net *mlp) forward() (*graph.Node, []*graph.Node, error) {
	var loss *graph.Node
	tr := trace.New()
	err := tr.Capture(net.g, func() error {
		h := net.x
		for i, w := range net.weights {
			z, err := ops.MatMul(h, w)
			if err != nil {
				return errors.WithMessagef(err, "layer %d", i)
			}
			if h, err = ops.Tanh(z); err != nil {
				return errors.WithMessagef(err, "layer %d", i)
			}
			if net.dropout > 0 {
				if h, err = ops.Dropout(h, net.dropout); err != nil {
					return errors.WithMessagef(err, "layer %d", i)
				}
			}
		}
		out, err := ops.MSELoss(h, net.y)
		if err != nil {
			return err
		}
		loss = out.SetName("loss")
		tr.MarkOutput(loss)
		return nil
	})
	if err != nil {
		return nil, nil, errors.WithMessage(err, "forward")
	}
	return loss, tr.TopoSort(), nil
}

// residentBytes sums the sizes of the values currently held by nodes.
func residentBytes(nodes []*graph.Node) uint64 {
	var total uint64
	for _, n := range nodes {
		if n.HasValue() {
			total += uint64(n.Value().ByteSize())
		}
	}
	return total
}
