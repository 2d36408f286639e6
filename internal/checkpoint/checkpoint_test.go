package checkpoint_test

import (
	"testing"

	"github.com/janpfeifer/must"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/agraph/internal/autodiff/ops"
	"github.com/born-ml/agraph/internal/checkpoint"
	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/tensor"
)

func vec(data ...float64) *tensor.RawTensor {
	return tensor.MustFromFloat64s(data, tensor.Shape{len(data)})
}

// chain builds x -> tanh -> exp -> neg -> sum and returns the nodes in that order.
func chain(t *testing.T, g *graph.Graph) (x, h1, h2, h3, loss *graph.Node) {
	t.Helper()
	x = g.Leaf(vec(0.1, -0.4, 0.8), "x", true)
	h1 = must.M1(ops.Tanh(x)).SetName("h1")
	h2 = must.M1(ops.Exp(h1)).SetName("h2")
	h3 = must.M1(ops.Neg(h2)).SetName("h3")
	loss = must.M1(ops.Sum(h3)).SetName("loss")
	return
}

func newManager(opts ...checkpoint.Option) (*checkpoint.Manager, *checkpoint.Metrics) {
	metrics := checkpoint.NewMetrics(prometheus.NewRegistry())
	return checkpoint.New(append(opts, checkpoint.WithMetrics(metrics))...), metrics
}

func TestMark_IdempotentAndDeepCopies(t *testing.T) {
	g := graph.New(ops.Default())
	x, h1, h2, _, _ := chain(t, g)
	m, metrics := newManager()

	m.Mark(h2, checkpoint.Options{})
	first := h2.Snapshots()
	m.Mark(h2, checkpoint.Options{SaveRNG: true})
	require.True(t, h2.IsCheckpoint())
	assert.Equal(t, first, h2.Snapshots())
	_, hasRNG := h2.RNGState()
	assert.False(t, hasRNG, "second mark is a no-op")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Marks))

	require.Len(t, first, 1)
	want := h1.Value().Float64s()
	h1.Value().AsFloat64()[0] = 99
	assert.Equal(t, want, first[0].Tensor.Float64s(), "snapshot is independent of the operand buffer")

	m.Mark(nil, checkpoint.Options{})
	assert.False(t, x.IsCheckpoint())
	assert.True(t, h2.HasValue(), "marking keeps the node value")
}

func TestMark_PlaceholderForMissingOperand(t *testing.T) {
	g := graph.New(ops.Default())
	_, h1, h2, _, _ := chain(t, g)
	h1.ClearValue()
	m := checkpoint.New()
	m.Mark(h2, checkpoint.Options{})
	require.True(t, h2.HasSnapshot())
	assert.Nil(t, h2.Snapshots()[0].Tensor)
}

func TestEvict_ProtectsPathToCheckpoint(t *testing.T) {
	g := graph.New(ops.Default())
	x, h1, h2, h3, loss := chain(t, g)
	m, metrics := newManager()
	m.Mark(h2, checkpoint.Options{})
	m.CaptureSnapshots(loss)

	report := m.Evict(loss)
	assert.Equal(t, 1, report.Nodes)
	assert.EqualValues(t, 3*8, report.Bytes)
	assert.False(t, h1.HasValue())
	for _, n := range []*graph.Node{x, h2, h3, loss} {
		assert.True(t, n.HasValue(), "%s must keep its value", n)
	}
	assert.NotNil(t, h2.Snapshots()[0].Tensor, "checkpoint keeps its operand copy")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EvictedNodes))
	assert.Equal(t, 24.0, testutil.ToFloat64(metrics.EvictedBytes))
	assert.Contains(t, report.String(), "24 B")
}

func TestEvict_LeafEvictionOptIn(t *testing.T) {
	g := graph.New(ops.Default())
	x, h1, _, _, loss := chain(t, g)
	m := checkpoint.New(checkpoint.WithLeafEviction(true))
	m.Mark(h1, checkpoint.Options{})

	report := m.Evict(loss)
	assert.Equal(t, 1, report.Nodes)
	assert.False(t, x.HasValue())
	assert.True(t, h1.HasValue())

	assert.Zero(t, m.Evict(nil).Nodes)
}

func TestEvict_SharedOperandStaysProtected(t *testing.T) {
	g := graph.New(ops.Default())
	a := g.Leaf(vec(3), "a", true)
	mul := must.M1(ops.Mul(a, a))
	neg := must.M1(ops.Neg(a))
	c := must.M1(ops.Add(mul, neg))
	m := checkpoint.New(checkpoint.WithLeafEviction(true))
	m.Mark(mul, checkpoint.Options{})

	report := m.Evict(c)
	assert.Zero(t, report.Nodes, "a is reachable through neg without crossing the checkpoint")
	assert.True(t, a.HasValue())
}

func TestRecompute_BitIdentical(t *testing.T) {
	g := graph.New(ops.Default())
	_, h1, h2, _, loss := chain(t, g)
	m, metrics := newManager()
	m.Mark(h2, checkpoint.Options{})
	want := tensor.Fingerprint(h2.Value())

	m.Evict(loss)
	h2.ClearValue()
	require.NoError(t, m.Recompute(h2))
	assert.True(t, h1.HasValue(), "operand restored from snapshot")
	assert.Equal(t, want, tensor.Fingerprint(h2.Value()))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Recomputes))
}

func TestRecompute_Failures(t *testing.T) {
	g := graph.New(ops.Default())
	_, h1, h2, _, _ := chain(t, g)
	m, metrics := newManager()

	assert.ErrorIs(t, m.Recompute(h1), checkpoint.ErrNotCheckpoint)
	assert.ErrorIs(t, m.Recompute(nil), checkpoint.ErrNotCheckpoint)

	m.Mark(h2, checkpoint.Options{})
	m.Release(h2)
	assert.ErrorIs(t, m.Recompute(h2), checkpoint.ErrNoSnapshot)
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.RecomputeFailures))
}

func TestRecompute_RecursesThroughCheckpointOperands(t *testing.T) {
	g := graph.New(ops.Default())
	x := g.Leaf(vec(0.5, 1.5), "x", true)
	a := must.M1(ops.Exp(x))
	b := must.M1(ops.Neg(a))
	want := tensor.Fingerprint(b.Value())

	m := checkpoint.New()
	m.Mark(a, checkpoint.Options{})
	a.ClearValue()
	m.Mark(b, checkpoint.Options{}) // placeholder slot for a
	b.ClearValue()

	require.NoError(t, m.Recompute(b))
	assert.True(t, a.HasValue())
	assert.Equal(t, want, tensor.Fingerprint(b.Value()))
}

func TestRecompute_MissingNonCheckpointOperand(t *testing.T) {
	g := graph.New(ops.Default())
	x := g.Leaf(vec(0.5), "x", true)
	a := must.M1(ops.Exp(x))
	b := must.M1(ops.Neg(a))

	m := checkpoint.New()
	a.ClearValue()
	m.Mark(b, checkpoint.Options{})
	b.ClearValue()
	assert.ErrorIs(t, m.Recompute(b), checkpoint.ErrMissingValue)
}

func TestRecompute_StaleOperand(t *testing.T) {
	build := func() (*graph.Node, *graph.Node) {
		g := graph.New(ops.Default())
		x := g.Leaf(vec(1, 2), "x", true)
		y := must.M1(ops.Exp(x))
		return x, y
	}

	t.Run("snapshot wins", func(t *testing.T) {
		x, y := build()
		m, metrics := newManager()
		m.Mark(y, checkpoint.Options{})
		x.SetValue(vec(5, 5))
		require.EqualValues(t, 1, x.Version())

		require.NoError(t, m.Recompute(y))
		assert.Equal(t, []float64{1, 2}, x.Value().Float64s())
		assert.Zero(t, x.Version(), "restore rolls the version back")
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StaleRestores))
	})

	t.Run("strict", func(t *testing.T) {
		x, y := build()
		m := checkpoint.New(checkpoint.WithStrictVersions(true))
		m.Mark(y, checkpoint.Options{})
		x.SetValue(vec(5, 5))
		assert.ErrorIs(t, m.Recompute(y), checkpoint.ErrStaleSnapshot)
		assert.Equal(t, []float64{5, 5}, x.Value().Float64s(), "strict mode leaves the operand alone")

		m.CaptureSnapshots(y)
		assert.NoError(t, m.Recompute(y), "a fresh capture clears the staleness")
	})
}

func TestRecompute_ReplaysRNG(t *testing.T) {
	g := graph.New(ops.Default(), graph.WithSeed(11))
	x := g.Leaf(tensor.Ones(tensor.Shape{64}, tensor.Float64), "x", true)
	d := must.M1(ops.Dropout(x, 0.3))
	want := tensor.Fingerprint(d.Value())
	wantMask := tensor.Fingerprint(d.Scratch().(*tensor.RawTensor))

	m := checkpoint.New()
	m.Mark(d, checkpoint.Options{SaveRNG: true})
	_ = must.M1(ops.Dropout(x, 0.3)) // advances the stream
	surrounding := g.RNG().Save()

	d.ClearValue()
	require.NoError(t, m.Recompute(d))
	assert.Equal(t, want, tensor.Fingerprint(d.Value()))
	assert.Equal(t, wantMask, tensor.Fingerprint(d.Scratch().(*tensor.RawTensor)))
	assert.Equal(t, surrounding, g.RNG().Save(), "the surrounding stream is put back")
}

func TestRepair_RefillsOperandsOfPresentCheckpoint(t *testing.T) {
	g := graph.New(ops.Default())
	_, h1, h2, h3, loss := chain(t, g)
	m := checkpoint.New()
	m.Mark(h3, checkpoint.Options{})
	m.Mark(h1, checkpoint.Options{})
	m.Evict(loss)
	require.False(t, h2.HasValue())

	require.False(t, h1.HasValue(), "h1 is only reachable through h3's operands")

	require.NoError(t, m.Repair(h3))
	assert.True(t, h2.HasValue(), "restored from h3's snapshot")

	require.NoError(t, m.Repair(h2))
	assert.True(t, h1.HasValue(), "checkpoint operand recomputed")
}

func TestRepair_MissingNonCheckpoint(t *testing.T) {
	g := graph.New(ops.Default())
	_, h1, h2, _, _ := chain(t, g)
	m := checkpoint.New()
	h2.ClearValue()
	assert.ErrorIs(t, m.Repair(h2), checkpoint.ErrMissingValue)

	h1.ClearValue()
	assert.NoError(t, m.Repair(h1.Inputs()[0]), "leaf x is intact")
	assert.NoError(t, m.Repair(nil))
}

func TestAutoEveryN_SixNodeChain(t *testing.T) {
	g := graph.New(ops.Default())
	nodes := []*graph.Node{g.Leaf(vec(1), "x", true)}
	for i := 0; i < 5; i++ {
		nodes = append(nodes, must.M1(ops.Neg(nodes[len(nodes)-1])))
	}
	root := nodes[5]
	m := checkpoint.New()

	assert.Zero(t, m.AutoEveryN(root, 0, checkpoint.Options{}))
	assert.Zero(t, m.AutoEveryN(root, -3, checkpoint.Options{}))

	// Visitation order from the root: n5=1, n4=2, n3=3, n2=4, n1=5, x=6.
	assert.Equal(t, 2, m.AutoEveryN(root, 2, checkpoint.Options{}))
	var marked []*graph.Node
	for _, n := range nodes {
		if n.IsCheckpoint() {
			marked = append(marked, n)
		}
	}
	assert.Equal(t, []*graph.Node{nodes[2], nodes[4]}, marked)
	assert.False(t, nodes[0].IsCheckpoint(), "leaf at index 6 is never marked")
}

func TestAutoByDepth(t *testing.T) {
	g := graph.New(ops.Default())
	nodes := []*graph.Node{g.Leaf(vec(1), "x", true)}
	for i := 0; i < 5; i++ {
		nodes = append(nodes, must.M1(ops.Neg(nodes[len(nodes)-1])))
	}
	m := checkpoint.New()
	assert.Equal(t, 2, m.AutoByDepth(nodes[5], 3, checkpoint.Options{}))
	assert.True(t, nodes[1].IsCheckpoint())
	assert.True(t, nodes[2].IsCheckpoint())
	assert.False(t, nodes[3].IsCheckpoint())
	assert.False(t, nodes[0].IsCheckpoint())
}

func TestComputeForwardValues(t *testing.T) {
	g := graph.New(ops.Default())
	_, h1, h2, h3, loss := chain(t, g)
	want := tensor.Fingerprint(loss.Value())
	for _, n := range []*graph.Node{h1, h2, h3, loss} {
		n.ClearValue()
	}
	m := checkpoint.New()
	require.NoError(t, m.ComputeForwardValues(loss))
	assert.Equal(t, want, tensor.Fingerprint(loss.Value()))
}

func TestComputeForwardValues_ReplaysStochasticNodes(t *testing.T) {
	g := graph.New(ops.Default(), graph.WithSeed(3))
	x := g.Leaf(tensor.Ones(tensor.Shape{64}, tensor.Float64), "x", true)
	d := must.M1(ops.Dropout(x, 0.4))
	loss := must.M1(ops.Sum(d))
	want := tensor.Fingerprint(d.Value())
	wantMask := tensor.Fingerprint(d.Scratch().(*tensor.RawTensor))
	surrounding := g.RNG().Save()

	d.ClearValue()
	loss.ClearValue()
	m := checkpoint.New()
	require.NoError(t, m.ComputeForwardValues(loss))
	assert.Equal(t, want, tensor.Fingerprint(d.Value()))
	assert.Equal(t, wantMask, tensor.Fingerprint(d.Scratch().(*tensor.RawTensor)))
	assert.Equal(t, surrounding, g.RNG().Save())

	d.ClearValue()
	require.NoError(t, m.Materialize(d))
	assert.Equal(t, want, tensor.Fingerprint(d.Value()))
}

func TestRelease(t *testing.T) {
	g := graph.New(ops.Default())
	_, h1, h2, _, loss := chain(t, g)
	m := checkpoint.New()
	m.Mark(h1, checkpoint.Options{SaveRNG: true})
	m.Mark(h2, checkpoint.Options{})

	assert.Equal(t, 2, m.Release(loss))
	assert.False(t, h1.HasSnapshot())
	_, ok := h1.RNGState()
	assert.False(t, ok)
	assert.True(t, h1.IsCheckpoint())
	assert.Zero(t, m.Release(loss))
}
