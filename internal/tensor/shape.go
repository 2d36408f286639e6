package tensor

import (
	"fmt"
	"slices"
)

// Shape holds the dimensions of a tensor, outermost first.
// An empty Shape is a scalar with one element.
type Shape []int

// NumElements returns the product of the dimensions.
func (s Shape) NumElements() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Validate rejects non-positive dimensions.
func (s Shape) Validate() error {
	for i, d := range s {
		if d <= 0 {
			return fmt.Errorf("shape %v: dimension %d is %d, must be > 0", []int(s), i, d)
		}
	}
	return nil
}

// Equal reports whether s and other have the same dimensions.
func (s Shape) Equal(other Shape) bool { return slices.Equal(s, other) }

// Clone returns a copy of s. A nil shape clones to an empty, non-nil one.
func (s Shape) Clone() Shape { return append(Shape{}, s...) }

// ComputeStrides returns the row-major strides of s.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	step := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = step
		step *= s[i]
	}
	return strides
}

// BroadcastStrides returns strides that read a tensor of shape s as if it had
// shape out. Dimensions that s lacks or holds as 1 get stride 0.
func (s Shape) BroadcastStrides(out Shape) []int {
	own := s.ComputeStrides()
	offset := len(out) - len(s)
	strides := make([]int, len(out))
	for i := range out {
		j := i - offset
		if j >= 0 && s[j] != 1 {
			strides[i] = own[j]
		}
	}
	return strides
}

// SourceIndex maps flat index i of a row-major tensor with strides outStrides
// to the flat index addressed through srcStrides.
func SourceIndex(i int, outStrides, srcStrides []int) int {
	src := 0
	for d, stride := range outStrides {
		src += (i / stride) * srcStrides[d]
		i %= stride
	}
	return src
}

// BroadcastShapes aligns a and b from the right; each pair of dimensions must
// match or contain a 1, and missing dimensions count as 1. It also reports
// whether either side has to be broadcast.
//
//	(3, 1) + (3, 5) -> (3, 5), true
//	(3, 5) + (3, 5) -> (3, 5), false
//	(3, 4) + (3, 5) -> error
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	n := max(len(a), len(b))
	out := make(Shape, n)
	broadcast := len(a) != len(b)
	for i := 1; i <= n; i++ {
		da, db := dimFromRight(a, i), dimFromRight(b, i)
		switch {
		case da == db:
			out[n-i] = da
		case da == 1:
			out[n-i], broadcast = db, true
		case db == 1:
			out[n-i], broadcast = da, true
		default:
			return nil, false, fmt.Errorf("shapes %v and %v do not broadcast: dimension %d is %d vs %d",
				[]int(a), []int(b), n-i, da, db)
		}
	}
	return out, broadcast, nil
}

func dimFromRight(s Shape, i int) int {
	if i > len(s) {
		return 1
	}
	return s[len(s)-i]
}
