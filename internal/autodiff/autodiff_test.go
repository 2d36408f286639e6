package autodiff_test

import (
	"math"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/agraph/internal/autodiff"
	"github.com/born-ml/agraph/internal/autodiff/ops"
	"github.com/born-ml/agraph/internal/checkpoint"
	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/tensor"
)

func scalar(v float64) *tensor.RawTensor { return tensor.Scalar(v, tensor.Float64) }

// square builds c = a*a + a with scalar a.
func square(g *graph.Graph, a float64) (leaf, mul, c *graph.Node) {
	leaf = g.Leaf(scalar(a), "a", true)
	mul = must.M1(ops.Mul(leaf, leaf)).SetName("mul")
	c = must.M1(ops.Add(mul, leaf)).SetName("c")
	return
}

// filled returns a tensor of the given shape with deterministic, varied values.
func filled(offset float64, shape ...int) *tensor.RawTensor {
	n := tensor.Shape(shape).NumElements()
	data := make([]float64, n)
	for i := range data {
		data[i] = math.Sin(offset+float64(i)*0.7) * 0.8
	}
	return tensor.MustFromFloat64s(data, shape)
}

type mlp struct {
	g       *graph.Graph
	x, y    *graph.Node
	weights []*graph.Node
	loss    *graph.Node
}

// buildMLP builds layers of dropout(tanh(h @ W)) followed by an MSE loss.
func buildMLP(t *testing.T, layers int, dropout float64) *mlp {
	t.Helper()
	g := graph.New(ops.Default(), graph.WithSeed(2024))
	m := &mlp{g: g}
	m.x = g.Leaf(filled(0, 4, 3), "x", false)
	m.y = g.Leaf(filled(5, 4, 3), "y", false)
	h := m.x
	for i := 0; i < layers; i++ {
		w := g.Leaf(filled(float64(10*i+1), 3, 3), "w", true)
		m.weights = append(m.weights, w)
		h = must.M1(ops.Tanh(must.M1(ops.MatMul(h, w))))
		if dropout > 0 {
			h = must.M1(ops.Dropout(h, dropout))
		}
	}
	m.loss = must.M1(ops.MSELoss(h, m.y))
	return m
}

func fingerprints(nodes []*graph.Node) []uint64 {
	out := make([]uint64, len(nodes))
	for i, n := range nodes {
		out[i] = tensor.Fingerprint(n.Grad())
	}
	return out
}

func TestBackward_SquarePlusIdentity(t *testing.T) {
	g := graph.New(ops.Default())
	a, _, c := square(g, 3)
	require.NoError(t, autodiff.Backward(c))
	assert.InDelta(t, 7.0, a.Grad().Item(), 1e-12)
	assert.InDelta(t, 12.0, c.Value().Item(), 1e-12)
}

func TestBackward_SquarePlusIdentityWithCheckpoint(t *testing.T) {
	g := graph.New(ops.Default())
	a, mul, c := square(g, 3)
	m := checkpoint.New(checkpoint.WithLeafEviction(true))
	m.Mark(mul, checkpoint.Options{})
	m.CaptureSnapshots(c)
	report := m.Evict(c)
	assert.Zero(t, report.Nodes, "a stays protected through the add")

	mul.ClearValue()
	require.NoError(t, autodiff.Backward(c, autodiff.WithManager(m)))
	assert.InDelta(t, 7.0, a.Grad().Item(), 1e-12)
	assert.True(t, mul.HasValue(), "checkpoint recomputed during backward")
}

func TestBackward_CheckpointTransparency(t *testing.T) {
	plain := buildMLP(t, 4, 0.25)
	require.NoError(t, autodiff.Backward(plain.loss))
	want := fingerprints(plain.weights)

	ckpt := buildMLP(t, 4, 0.25)
	require.Equal(t, tensor.Fingerprint(plain.loss.Value()), tensor.Fingerprint(ckpt.loss.Value()))
	counter := &recorder{}
	m := checkpoint.New()
	require.Positive(t, m.AutoEveryN(ckpt.loss, 2, checkpoint.Options{SaveRNG: true}))
	m.CaptureSnapshots(ckpt.loss)
	report := m.Evict(ckpt.loss)
	require.Positive(t, report.Nodes)

	require.NoError(t, autodiff.Backward(ckpt.loss, autodiff.WithManager(m), autodiff.WithStepObserver(counter.observe)))
	assert.Equal(t, want, fingerprints(ckpt.weights), "grads are bit-identical with eviction")
	assert.Equal(t, ckpt.loss, counter.nodes[0], "root is visited first")
}

func TestBackward_DepthPolicyTransparency(t *testing.T) {
	plain := buildMLP(t, 3, 0)
	require.NoError(t, autodiff.Backward(plain.loss))
	want := fingerprints(plain.weights)

	ckpt := buildMLP(t, 3, 0)
	m := checkpoint.New()
	m.AutoByDepth(ckpt.loss, 1, checkpoint.Options{})
	m.CaptureSnapshots(ckpt.loss)
	m.Evict(ckpt.loss)
	require.NoError(t, autodiff.Backward(ckpt.loss, autodiff.WithManager(m)))
	assert.Equal(t, want, fingerprints(ckpt.weights))
}

type recorder struct{ nodes []*graph.Node }

func (r *recorder) observe(n *graph.Node, _ *tensor.RawTensor) { r.nodes = append(r.nodes, n) }

func TestBackward_RequiresGradBlocksFlow(t *testing.T) {
	g := graph.New(ops.Default())
	a := g.Leaf(scalar(3), "a", true)
	two := g.Leaf(scalar(2), "two", false)
	b := must.M1(ops.Mul(a, two))
	b.SetRequiresGrad(false)
	c := must.M1(ops.Add(b, a))

	require.NoError(t, autodiff.Backward(c))
	assert.InDelta(t, 1.0, a.Grad().Item(), 1e-12)
	assert.Nil(t, b.Grad())
	assert.Nil(t, two.Grad())
}

func TestBackward_MissingVJPSkips(t *testing.T) {
	r := ops.NewRegistry()
	r.SetVJP(graph.OpMul, nil)
	g := graph.New(r)
	a, _, c := square(g, 3)
	require.NoError(t, autodiff.Backward(c, autodiff.WithRegistry(r)))
	assert.InDelta(t, 1.0, a.Grad().Item(), 1e-12, "only the direct edge contributes")

	g = graph.New(ops.Default())
	x := g.Leaf(tensor.MustFromFloat64s([]float64{-2, 3}, tensor.Shape{2}), "x", true)
	y := must.M1(ops.Sum(must.M1(ops.Mul(must.M1(ops.Sign(x)), x))))
	require.NoError(t, autodiff.Backward(y))
	assert.Equal(t, []float64{-1, 1}, x.Grad().Float64s(), "sign contributes no gradient")
}

func TestBackward_HandlerFailureNamesNode(t *testing.T) {
	r := ops.NewRegistry()
	r.SetVJP(graph.OpMul, func(*graph.Node, *tensor.RawTensor) error { panic("kernel exploded") })
	g := graph.New(r)
	_, _, c := square(g, 3)

	err := autodiff.Backward(c, autodiff.WithRegistry(r))
	require.Error(t, err)
	assert.ErrorIs(t, err, ops.ErrHandlerPanic)
	assert.Contains(t, err.Error(), `Mul("mul")`)
	assert.Contains(t, err.Error(), "kernel exploded")

	failure := errors.New("bad rule")
	r.SetVJP(graph.OpMul, func(*graph.Node, *tensor.RawTensor) error { return failure })
	autodiff.ZeroGrad(c)
	err = autodiff.Backward(c, autodiff.WithRegistry(r))
	assert.ErrorIs(t, err, failure)
}

func TestBackward_UnrepairableMissingValue(t *testing.T) {
	g := graph.New(ops.Default())
	a := g.Leaf(scalar(1), "a", true)
	n := must.M1(ops.Neg(a)).SetName("n")
	c := must.M1(ops.Exp(n))
	n.ClearValue()

	err := autodiff.Backward(c)
	assert.ErrorIs(t, err, checkpoint.ErrMissingValue)
	assert.Contains(t, err.Error(), `Neg("n")`)
}

func TestBackward_UnsnapshottedCheckpointFails(t *testing.T) {
	g := graph.New(ops.Default())
	_, mul, c := square(g, 3)
	m := checkpoint.New()
	m.Mark(mul, checkpoint.Options{})
	m.Release(c)
	mul.ClearValue()

	err := autodiff.Backward(c, autodiff.WithManager(m))
	assert.ErrorIs(t, err, checkpoint.ErrNoSnapshot)
	assert.NotNil(t, c.Grad(), "partial state stays inspectable")
}

func TestBackward_SeedAndAccumulation(t *testing.T) {
	g := graph.New(ops.Default())
	a, _, c := square(g, 3)
	require.NoError(t, autodiff.Backward(c, autodiff.WithSeed(scalar(2))))
	assert.InDelta(t, 14.0, a.Grad().Item(), 1e-12)

	require.NoError(t, autodiff.Backward(c))
	assert.InDelta(t, 33.0, a.Grad().Item(), 1e-12, "every grad accumulates across passes")

	autodiff.ZeroGrad(c)
	assert.Zero(t, a.Grad().Item())
	assert.Zero(t, c.Grad().Item())
	require.NoError(t, autodiff.Backward(c))
	assert.InDelta(t, 7.0, a.Grad().Item(), 1e-12)

	err := autodiff.Backward(c, autodiff.WithSeed(tensor.Ones(tensor.Shape{2}, tensor.Float64)))
	assert.Error(t, err)
}

func TestBackward_NilRoot(t *testing.T) {
	assert.NoError(t, autodiff.Backward(nil))
	autodiff.ZeroGrad(nil)
	out, err := autodiff.JVP(nil, nil)
	assert.NoError(t, err)
	assert.Nil(t, out)
}

func TestZeroGrad_EvictedNodes(t *testing.T) {
	g := graph.New(ops.Default())
	x := g.Leaf(filled(0, 2, 3), "x", true)
	h := must.M1(ops.Tanh(x))
	loss := must.M1(ops.Sum(h))
	h.ClearValue()

	autodiff.ZeroGrad(loss)
	require.NotNil(t, h.Grad())
	assert.Equal(t, tensor.Shape{2, 3}, h.Grad().Shape())
}

func TestJVP_SquarePlusIdentity(t *testing.T) {
	g := graph.New(ops.Default())
	a, _, c := square(g, 3)
	out, err := autodiff.JVP(c, map[*graph.Node]*tensor.RawTensor{a: scalar(1)})
	require.NoError(t, err)
	assert.InDelta(t, 7.0, out.Item(), 1e-12)
	assert.Nil(t, a.Grad(), "forward mode leaves grads alone")
	assert.Nil(t, c.Grad())

	out, err = autodiff.JVP(c, nil)
	require.NoError(t, err)
	assert.Zero(t, out.Item())
}

func TestJVP_MatchesBackwardDirectionalDerivative(t *testing.T) {
	m := buildMLP(t, 2, 0.2)
	require.NoError(t, autodiff.Backward(m.loss))

	seeds := map[*graph.Node]*tensor.RawTensor{}
	want := 0.0
	for i, w := range m.weights {
		v := filled(float64(100+i), 3, 3)
		seeds[w] = v
		g, d := w.Grad().Float64s(), v.Float64s()
		for j := range g {
			want += g[j] * d[j]
		}
	}
	grads := fingerprints(m.weights)

	out, err := autodiff.JVP(m.loss, seeds)
	require.NoError(t, err)
	assert.InDelta(t, want, out.Item(), 1e-12)
	assert.Equal(t, grads, fingerprints(m.weights), "grads untouched by JVP")
}

func TestJVP_RepairsEvictedValues(t *testing.T) {
	m := buildMLP(t, 3, 0)
	seeds := map[*graph.Node]*tensor.RawTensor{m.weights[0]: filled(7, 3, 3)}
	want, err := autodiff.JVP(m.loss, seeds)
	require.NoError(t, err)

	mgr := checkpoint.New()
	mgr.AutoEveryN(m.loss, 2, checkpoint.Options{})
	mgr.CaptureSnapshots(m.loss)
	require.Positive(t, mgr.Evict(m.loss).Nodes)

	got, err := autodiff.JVP(m.loss, seeds, autodiff.WithManager(mgr))
	require.NoError(t, err)
	assert.Equal(t, tensor.Fingerprint(want), tensor.Fingerprint(got))
}

// dropoutTanh builds c = sum(tanh(dropout(x))) with tanh as the only
// checkpoint and the dropout output evicted.
func dropoutTanh(t *testing.T) (x, d, h, c *graph.Node, mgr *checkpoint.Manager) {
	t.Helper()
	g := graph.New(ops.Default(), graph.WithSeed(5))
	x = g.Leaf(filled(1, 32), "x", true)
	d = must.M1(ops.Dropout(x, 0.5)).SetName("d")
	h = must.M1(ops.Tanh(d)).SetName("h")
	c = must.M1(ops.Sum(h)).SetName("c")
	mgr = checkpoint.New()
	mgr.Mark(h, checkpoint.Options{SaveRNG: true})
	mgr.CaptureSnapshots(c)
	require.Equal(t, 1, mgr.Evict(c).Nodes)
	require.False(t, d.HasValue())
	return
}

func TestJVP_KeepsEvictedDropoutMask(t *testing.T) {
	x, _, _, c, mgr := dropoutTanh(t)
	require.NoError(t, autodiff.Backward(c, autodiff.WithManager(mgr)))
	want := tensor.Fingerprint(x.Grad())

	x, d, h, c, mgr := dropoutTanh(t)
	rng := x.Graph().RNG()
	surrounding := rng.Save()
	_, err := autodiff.JVP(c, map[*graph.Node]*tensor.RawTensor{x: tensor.OnesLike(x.Value())},
		autodiff.WithManager(mgr))
	require.NoError(t, err)
	require.True(t, d.HasValue())
	snapMask := h.Snapshots()[0].Scratch.(*tensor.RawTensor)
	assert.Equal(t, tensor.Fingerprint(snapMask), tensor.Fingerprint(d.Scratch().(*tensor.RawTensor)),
		"regenerated dropout replays its original mask")
	assert.Equal(t, surrounding, rng.Save(), "JVP leaves the graph RNG stream where it was")

	require.NoError(t, autodiff.Backward(c, autodiff.WithManager(mgr)))
	assert.Equal(t, want, tensor.Fingerprint(x.Grad()), "JVP does not change later gradients")
}

func TestJVP_Errors(t *testing.T) {
	r := ops.NewRegistry()
	r.SetJVP(graph.OpAdd, nil)
	g := graph.New(r)
	a, _, c := square(g, 3)
	_, err := autodiff.JVP(c, nil, autodiff.WithRegistry(r))
	assert.ErrorIs(t, err, autodiff.ErrNoJVPRule)

	_, err = autodiff.JVP(c, map[*graph.Node]*tensor.RawTensor{a: tensor.Ones(tensor.Shape{3}, tensor.Float64)})
	assert.Error(t, err, "seed shape mismatch")
}
