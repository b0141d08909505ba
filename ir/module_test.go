package ir_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gomlx/tensorir/dtypes"
	"github.com/gomlx/tensorir/ir"
)

func TestModule_Dump(t *testing.T) {
	m := ir.NewModule("small")
	b := ir.NewBuilder(m)
	input := b.Input(dtypes.Float32, []int{1, 8, 8, 3}, "input")
	conv := b.Convolution(input, 4, 3, 1, 1)
	b.Relu(conv.Dest())

	want := `declare {
  %input = float32<1 x 8 x 8 x 3>, activation
  %filter = float32<4 x 3 x 3 x 3>, weight, xavier, 27
  %bias = float32<4>, weight, broadcast, 0.1
  %res = float32<1 x 8 x 8 x 4>, activation
  %res1 = float32<1 x 8 x 8 x 4>, activation
}

program {
  %convolution = convolution [3 1 1 4] @out %res, @in %input, @in %filter, @in %bias
  %relu = relu @out %res1, @in %res
}
`
	require.Equal(t, want, m.String())
}

func TestModule_DescribeInstructions(t *testing.T) {
	m := ir.NewModule(t.Name())
	b := ir.NewBuilder(m)
	input := b.Input(dtypes.Float32, []int{1, 16, 16, 8}, "input")

	pool := b.Pool(input, ir.PoolMax, 2, 2, 0)
	require.Equal(t,
		"%pool = pool max [2 2 0] @out %res, @in %input, @inout %srcXY",
		ir.Describe(pool))

	tr := b.Transpose(input, []int{0, 3, 1, 2})
	require.Equal(t,
		"%transpose = transpose [0, 3, 1, 2] @out %res1, @in %input",
		ir.Describe(tr))

	concat := b.Concat([]ir.Value{input, input}, 3)
	require.Equal(t,
		"%concat = concat { 3 } @out %res2, @in %input, @in %input",
		ir.Describe(concat))

	bn := b.BatchNormalization(input, 3, 1e-5, 0.9)
	require.Equal(t,
		"%batchnormalization = batchnormalization [3 1e-05 0.9] @out %res3, @in %input, @in %gamma, @in %beta, @inout %mean, @inout %variance",
		ir.Describe(bn))

	add := b.Arithmetic(input, input, ir.ArithAdd)
	require.Equal(t,
		"%arithmetic = arithmetic add @out %res4, @in %input, @in %input",
		ir.Describe(add))
}

func TestModule_NameUniquing(t *testing.T) {
	m := ir.NewModule(t.Name())
	b := ir.NewBuilder(m)
	input := b.Input(dtypes.Float32, []int{1, 8, 8, 3}, "input")

	c1 := b.Convolution(input, 4, 3, 1, 1)
	c2 := b.Convolution(input, 4, 3, 1, 1)
	require.Equal(t, "convolution", c1.Name())
	require.Equal(t, "convolution1", c2.Name())

	require.Equal(t, "filter", c1.Operands()[2].Value.Name())
	require.Equal(t, "filter1", c2.Operands()[2].Value.Name())
	require.Equal(t, "bias", c1.Operands()[3].Value.Name())
	require.Equal(t, "bias1", c2.Operands()[3].Value.Name())
}

func TestModule_OwnershipAndIteration(t *testing.T) {
	m := ir.NewModule(t.Name())
	b := ir.NewBuilder(m)
	input := b.Input(dtypes.Float32, []int{2, 2}, "input")
	relu := b.Relu(input)

	// Input, relu output.
	require.Len(t, m.Variables(), 2)
	require.Same(t, input, m.Variables()[0])
	require.Len(t, m.Instructions(), 1)

	// Passes rewrite the instruction list through SetInstructions.
	m.SetInstructions(nil)
	require.Empty(t, m.Instructions())
	require.Empty(t, m.Verify())
	_ = relu
}

func TestModule_UniqueTypeEntryPoint(t *testing.T) {
	m := ir.NewModule(t.Name())
	t1 := m.UniqueType(dtypes.Float32, 3, 3)
	t2 := m.UniqueType(dtypes.Float32, 3, 3)
	require.Same(t, t1, t2)
	require.NotSame(t, t1, m.UniqueType(dtypes.Float64, 3, 3))
}
