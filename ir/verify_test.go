package ir_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gomlx/tensorir/dtypes"
	"github.com/gomlx/tensorir/ir"
)

// The low-level constructors trust caller-supplied output buffers, so they
// are how malformed IR — the kind an incorrect optimization pass would
// produce — gets into a Module. Verify must report it without panicking.

func TestVerify_ReshapeElementCount(t *testing.T) {
	m, b := newTestBuilder(t)
	src := b.Input(dtypes.Float32, []int{2, 12}, "src")
	dest := b.NewVariable(dtypes.Float32, []int{5, 5}, "dst", ir.InitExtern, ir.ShareActivation, 0)
	bad := b.NewReshapeInst(dest, src, []int{5, 5})

	violations := m.Verify()
	require.Len(t, violations, 1)
	require.Same(t, bad, violations[0].Instr)
	require.Equal(t, 0, violations[0].InstrIndex)
	require.Contains(t, violations[0].Error(), "element count")

	// Verification is pure: re-running it yields the same result.
	for i := 0; i < 3; i++ {
		again := m.Verify()
		require.Len(t, again, 1)
		require.Equal(t, violations[0].Error(), again[0].Error())
	}
}

func TestVerify_ReshapeRecordedDims(t *testing.T) {
	m, b := newTestBuilder(t)
	src := b.Input(dtypes.Float32, []int{4, 6}, "src")
	dest := b.NewVariable(dtypes.Float32, []int{6, 4}, "dst", ir.InitExtern, ir.ShareActivation, 0)
	// Same element count, but the recorded dims disagree with the output.
	b.NewReshapeInst(dest, src, []int{2, 12})

	violations := m.Verify()
	require.Len(t, violations, 1)
	require.Contains(t, violations[0].Error(), "recorded dims")
}

func TestVerify_ConvolutionDims(t *testing.T) {
	m, b := newTestBuilder(t)
	src := b.Input(dtypes.Float32, []int{1, 32, 32, 3}, "src")
	dest := b.NewVariable(dtypes.Float32, []int{1, 32, 32, 16}, "dst", ir.InitExtern, ir.ShareActivation, 0)
	filter := b.NewVariable(dtypes.Float32, []int{16, 5, 5, 4}, "filter", ir.InitXavier, ir.ShareWeight, 75)
	bias := b.NewVariable(dtypes.Float32, []int{8}, "bias", ir.InitBroadcast, ir.ShareWeight, 0.1)
	b.NewConvolutionInst(dest, src, filter, bias, 5, 1, 2, 16)

	violations := m.Verify()
	require.Len(t, violations, 2) // bad filter channels, bad bias length
	require.Contains(t, violations[0].Error(), "filter")
	require.Contains(t, violations[1].Error(), "bias")
}

func TestVerify_PoolCoordinateCache(t *testing.T) {
	m, b := newTestBuilder(t)
	src := b.Input(dtypes.Float32, []int{1, 16, 16, 8}, "src")
	dest := b.NewVariable(dtypes.Float32, []int{1, 8, 8, 8}, "dst", ir.InitExtern, ir.ShareActivation, 0)
	// Coordinate cache with the right dims but a float element kind.
	srcXY := b.NewVariable(dtypes.Float32, []int{1, 8, 8, 8, 2}, "srcXY", ir.InitExtern, ir.ShareActivation, 0)
	b.NewPoolInst(dest, src, srcXY, ir.PoolMax, 2, 2, 0)

	violations := m.Verify()
	require.Len(t, violations, 1)
	require.Contains(t, violations[0].Error(), "srcXY")
}

func TestVerify_ConcatStacking(t *testing.T) {
	m, b := newTestBuilder(t)
	a := b.Input(dtypes.Float32, []int{2, 4, 4, 6}, "a")
	c := b.Input(dtypes.Float32, []int{2, 4, 4, 6}, "c")
	// Output extent on the axis must be the common extent times the input
	// count: 12 instead of 18 is a violation.
	dest := b.NewVariable(dtypes.Float32, []int{2, 4, 4, 12}, "dst", ir.InitExtern, ir.ShareActivation, 0)
	b.NewConcatInst(dest, []ir.Value{a, c, a}, 3)

	violations := m.Verify()
	require.Len(t, violations, 1)
	require.Contains(t, violations[0].Error(), "output dims")
}

func TestVerify_TransposePermutation(t *testing.T) {
	m, b := newTestBuilder(t)
	src := b.Input(dtypes.Float32, []int{2, 3, 5}, "src")
	dest := b.NewVariable(dtypes.Float32, []int{5, 2, 3}, "dst", ir.InitExtern, ir.ShareActivation, 0)
	tr := b.NewTransposeInst(dest, src, []int{2, 0, 1})
	require.Empty(t, m.Verify())

	// A pass that rewrites the shuffle must keep it a permutation.
	tr.Shuffle = []int{2, 2, 1}
	violations := m.Verify()
	require.Len(t, violations, 1)
	require.Contains(t, violations[0].Error(), "permutation")
}

func TestVerify_ArithmeticTypes(t *testing.T) {
	m, b := newTestBuilder(t)
	lhs := b.Input(dtypes.Float32, []int{2, 5}, "lhs")
	rhs := b.Input(dtypes.Float32, []int{5, 2}, "rhs")
	dest := b.NewVariable(dtypes.Float32, []int{2, 5}, "dst", ir.InitExtern, ir.ShareActivation, 0)
	b.NewArithmeticInst(dest, lhs, rhs, ir.ArithAdd)

	violations := m.Verify()
	require.Len(t, violations, 1)
	require.Contains(t, violations[0].Error(), "rhs")
}

func TestVerify_BatchNormalizationChannels(t *testing.T) {
	m, b := newTestBuilder(t)
	src := b.Input(dtypes.Float32, []int{1, 10, 10, 3}, "src")
	dest := b.NewVariable(dtypes.Float32, []int{1, 10, 10, 3}, "dst", ir.InitExtern, ir.ShareActivation, 0)
	gamma := b.NewVariable(dtypes.Float32, []int{3}, "gamma", ir.InitBroadcast, ir.ShareWeight, 1)
	beta := b.NewVariable(dtypes.Float32, []int{4}, "beta", ir.InitBroadcast, ir.ShareWeight, 0)
	mean := b.NewVariable(dtypes.Float32, []int{3}, "mean", ir.InitRunningStat, ir.ShareWeight, 0)
	variance := b.NewVariable(dtypes.Float32, []int{4}, "variance", ir.InitRunningStat, ir.ShareWeight, 0)
	b.NewBatchNormalizationInst(dest, src, gamma, beta, mean, variance, 3, 1e-5, 0.9)

	violations := m.Verify()
	require.Len(t, violations, 2)
	require.Contains(t, violations[0].Error(), "beta")
	require.Contains(t, violations[1].Error(), "variance")
}

func TestVerify_ReportsEveryViolation(t *testing.T) {
	m, b := newTestBuilder(t)
	// Two independent bad instructions: both must be reported, with their
	// program-order indexes.
	src := b.Input(dtypes.Float32, []int{2, 12}, "src")
	badReshape := b.NewVariable(dtypes.Float32, []int{5, 5}, "r", ir.InitExtern, ir.ShareActivation, 0)
	b.NewReshapeInst(badReshape, src, []int{5, 5})

	other := b.Input(dtypes.Float16, []int{2, 12}, "other")
	badCopy := b.NewVariable(dtypes.Float32, []int{2, 12}, "c", ir.InitExtern, ir.ShareActivation, 0)
	b.NewCopyInst(badCopy, other)

	violations := m.Verify()
	require.Len(t, violations, 2)
	require.Equal(t, 0, violations[0].InstrIndex)
	require.Equal(t, 1, violations[1].InstrIndex)
}
