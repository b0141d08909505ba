package ir

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// dimsSize returns the total number of elements of a shape. A scalar (rank 0)
// has size 1; a shape with a zero extent has size 0.
func dimsSize(dims []int) int {
	size := 1
	for _, dim := range dims {
		size *= dim
	}
	return size
}

// dimsString renders dimensions the way the dump format expects, e.g.
// "<16 x 5 x 5 x 3>". A scalar renders as "<>".
func dimsString(dims []int) string {
	var sb strings.Builder
	sb.WriteByte('<')
	for i, dim := range dims {
		if i > 0 {
			sb.WriteString(" x ")
		}
		fmt.Fprintf(&sb, "%d", dim)
	}
	sb.WriteByte('>')
	return sb.String()
}

// intsDesc renders an attribute list like "[5 1 2 16]".
func intsDesc(values ...int) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range values {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d", v)
	}
	sb.WriteByte(']')
	return sb.String()
}

// intSliceDesc renders a dimensions attribute like "[2, 4, 4, 6]".
func intSliceDesc(values []int) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range values {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%d", v)
	}
	sb.WriteByte(']')
	return sb.String()
}

// flattenLeading collapses all non-leading axes of dims into a single feature
// axis, preserving the leading (batch) axis.
func flattenLeading(dims []int) (batch, features int, err error) {
	if len(dims) < 1 {
		return 0, 0, errors.Errorf("cannot flatten a scalar shape")
	}
	return dims[0], dimsSize(dims[1:]), nil
}

// convOutputDims computes the spatial output sizes of a convolution or
// pooling window: per axis, floor((extent + 2*pad - kernel) / stride) + 1.
// The kernel must fit the unpadded input on both spatial axes.
func convOutputDims(h, w, pad, kernel, stride int) (outH, outW int, err error) {
	if kernel < 1 || stride < 1 {
		return 0, 0, errors.Errorf("kernel (%d) and stride (%d) must be >= 1", kernel, stride)
	}
	if h < kernel || w < kernel {
		return 0, 0, errors.Errorf("input (%d x %d) too small for kernel %d", h, w, kernel)
	}
	outH = (h+2*pad-kernel)/stride + 1
	outW = (w+2*pad-kernel)/stride + 1
	return outH, outW, nil
}

// isPermutation reports whether shuffle is a permutation of [0, rank).
func isPermutation(shuffle []int, rank int) bool {
	if len(shuffle) != rank {
		return false
	}
	seen := make([]bool, rank)
	for _, axis := range shuffle {
		if axis < 0 || axis >= rank || seen[axis] {
			return false
		}
		seen[axis] = true
	}
	return true
}

// permuteDims applies shuffle to dims: output[i] = dims[shuffle[i]].
func permuteDims(dims, shuffle []int) []int {
	permuted := make([]int, len(shuffle))
	for i, axis := range shuffle {
		permuted[i] = dims[axis]
	}
	return permuted
}

// dimsEqual is a shortcut for slices.Equal on dimensions.
func dimsEqual(a, b []int) bool {
	return slices.Equal(a, b)
}
