package ops

import (
	"github.com/pkg/errors"

	"github.com/born-ml/agraph/internal/backend/cpu"
	"github.com/born-ml/agraph/internal/graph"
	"github.com/born-ml/agraph/internal/tensor"
)

var backend = cpu.New()

// operands returns the values of n's inputs, failing on the first empty one.
func operands(n *graph.Node) ([]*tensor.RawTensor, error) {
	inputs := n.Inputs()
	values := make([]*tensor.RawTensor, len(inputs))
	for i, in := range inputs {
		if !in.HasValue() {
			return nil, errors.Errorf("%s: operand %d (%s) has no value", n.Op(), i, in)
		}
		values[i] = in.Value()
	}
	return values, nil
}

// output returns n's own value, required by rules expressed through the result.
func output(n *graph.Node) (*tensor.RawTensor, error) {
	if !n.HasValue() {
		return nil, errors.Errorf("%s: own value is missing", n)
	}
	return n.Value(), nil
}

// reduceBroadcast reduces a gradient to the operand shape after a
// broadcasting forward op. It always returns a fresh tensor.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, target tensor.Shape) *tensor.RawTensor {
	return backend.SumTo(grad, target)
}

// accumulate adds grad into the gradient of operand n. Operands that do not
// require grad are left untouched.
func accumulate(n *graph.Node, grad *tensor.RawTensor) {
	if !n.RequiresGrad() {
		return
	}
	grad = reduceBroadcast(grad, n.Shape())
	if n.Grad() == nil {
		n.SetGrad(grad)
		return
	}
	n.SetGrad(backend.Add(n.Grad(), grad))
}

// build creates a node of kind op on the graph of its first input.
func build(op graph.OpKind, param float64, inputs ...*graph.Node) (*graph.Node, error) {
	for i, in := range inputs {
		if in == nil {
			return nil, errors.Errorf("%s: input %d is nil", op, i)
		}
	}
	return inputs[0].Graph().Apply(op, "", param, inputs...)
}
