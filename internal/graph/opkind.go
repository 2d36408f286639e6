package graph

// OpKind identifies the operation a Node performs. The set is closed: the
// registries in autodiff/ops switch over every kind.
type OpKind int

// Supported operations.
const (
	OpLeaf OpKind = iota // input, parameter or constant; holds a user value
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNeg
	OpMatMul
	OpTranspose
	OpExp
	OpLog
	OpTanh
	OpSigmoid
	OpReLU
	OpSum
	OpMean
	OpMSELoss
	OpDropout // stochastic, Param() is the drop probability
	OpSign    // not differentiable: no VJP

	NumOpKinds int = iota
)

var opNames = [...]string{
	OpLeaf:      "Leaf",
	OpAdd:       "Add",
	OpSub:       "Sub",
	OpMul:       "Mul",
	OpDiv:       "Div",
	OpNeg:       "Neg",
	OpMatMul:    "MatMul",
	OpTranspose: "Transpose",
	OpExp:       "Exp",
	OpLog:       "Log",
	OpTanh:      "Tanh",
	OpSigmoid:   "Sigmoid",
	OpReLU:      "ReLU",
	OpSum:       "Sum",
	OpMean:      "Mean",
	OpMSELoss:   "MSELoss",
	OpDropout:   "Dropout",
	OpSign:      "Sign",
}

// String returns the op name.
func (k OpKind) String() string {
	if k < 0 || int(k) >= len(opNames) {
		return "Unknown"
	}
	return opNames[k]
}

// Arity returns the number of operands the op takes.
func (k OpKind) Arity() int {
	switch k {
	case OpLeaf:
		return 0
	case OpAdd, OpSub, OpMul, OpDiv, OpMatMul, OpMSELoss:
		return 2
	default:
		return 1
	}
}

// IsStochastic reports whether the op draws from the graph RNG when evaluated.
func (k OpKind) IsStochastic() bool {
	return k == OpDropout
}
