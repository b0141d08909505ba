package ir

import (
	"github.com/gomlx/exceptions"

	"github.com/gomlx/tensorir/dtypes"
	"github.com/gomlx/tensorir/ir/opkinds"
)

// Builder constructs the IR of one Module.
//
// The high-level operator methods (Convolution, Pool, FullyConnected, ...)
// compute output shapes, allocate any needed parameter and cache buffers with
// the right sharing and initialization policies, and emit one instruction.
//
// The low-level NewXxxInst constructors only check operand arity and
// ownership and append: they trust the caller-supplied output buffer, and any
// shape mistake surfaces in Module.Verify.
//
// Precondition violations (a kernel larger than its input, mismatched
// operand shapes, a value from another module) are caller bugs in graph
// construction and panic with an "invalid IR construction" error: a
// malformed graph must never reach later passes.
type Builder struct {
	module *Module
}

// NewBuilder returns a Builder appending to the given Module.
func NewBuilder(m *Module) *Builder {
	return &Builder{module: m}
}

// Module returns the module the builder appends to.
func (b *Builder) Module() *Module { return b.module }

// NewVariable declares a new buffer in the builder's module.
// Val is the broadcast value for InitBroadcast and the fan-in for InitXavier.
func (b *Builder) NewVariable(dtype dtypes.DType, dims []int, name string,
	init InitKind, share ShareKind, val float32) *Variable {
	return b.newVariableOfType(b.module.UniqueType(dtype, dims...), name, init, share, val)
}

// Input declares a caller-supplied per-evaluation buffer, e.g. the model
// input.
func (b *Builder) Input(dtype dtypes.DType, dims []int, name string) *Variable {
	return b.NewVariable(dtype, dims, name, InitExtern, ShareActivation, 0)
}

func (b *Builder) newVariableOfType(t *Type, name string, init InitKind, share ShareKind, val float32) *Variable {
	v := &Variable{
		typ:   t,
		name:  b.module.uniqueName(name),
		share: share,
		init:  init,
		Val:   val,
	}
	b.module.pushVar(v)
	return v
}

// newActivation allocates an unnamed ephemeral output or cache buffer.
func (b *Builder) newActivation(t *Type) *Variable {
	return b.newVariableOfType(t, "", InitExtern, ShareActivation, 0)
}

// Convolution emits a 2D convolution of the NHWC input with depth output
// channels. It allocates the filter (Xavier-initialized with fan-in
// kernel*kernel*inputChannels), the bias (broadcast 0.1) and the output
// buffer.
func (b *Builder) Convolution(input Value, depth, kernel, stride, pad int) *ConvolutionInst {
	idim := input.Dims()
	if len(idim) != 4 {
		exceptions.Panicf("invalid IR construction: convolution input must be rank-4 (NHWC), got %s", input.Type())
	}
	outH, outW, err := convOutputDims(idim[1], idim[2], pad, kernel, stride)
	if err != nil {
		exceptions.Panicf("invalid IR construction: convolution: %v", err)
	}

	inChannels := idim[3]
	fanIn := kernel * kernel * inChannels
	filter := b.NewVariable(input.ElemKind(), []int{depth, kernel, kernel, inChannels},
		"filter", InitXavier, ShareWeight, float32(fanIn))
	bias := b.NewVariable(input.ElemKind(), []int{depth},
		"bias", InitBroadcast, ShareWeight, 0.1)

	dest := b.newActivation(b.module.UniqueType(input.ElemKind(), idim[0], outH, outW, depth))
	return b.NewConvolutionInst(dest, input, filter, bias, kernel, stride, pad, depth)
}

// Pool emits a 2D max or average pooling over the NHWC input, preserving the
// channel count. For max-pooling it allocates the srcXY coordinate cache
// holding the (row, col) of the selected element per window, used by a
// backward pass; for average pooling srcXY is a scalar placeholder.
func (b *Builder) Pool(input Value, pool PoolOp, kernel, stride, pad int) *PoolInst {
	idim := input.Dims()
	if len(idim) != 4 {
		exceptions.Panicf("invalid IR construction: pool input must be rank-4 (NHWC), got %s", input.Type())
	}
	outH, outW, err := convOutputDims(idim[1], idim[2], pad, kernel, stride)
	if err != nil {
		exceptions.Panicf("invalid IR construction: pool: %v", err)
	}

	var srcXY *Variable
	if pool == PoolMax {
		srcXY = b.NewVariable(dtypes.Index, []int{idim[0], outH, outW, idim[3], 2},
			"srcXY", InitExtern, ShareActivation, 0)
	} else {
		srcXY = b.NewVariable(dtypes.Index, nil, "srcXY", InitExtern, ShareActivation, 0)
	}

	dest := b.newActivation(b.module.UniqueType(input.ElemKind(), idim[0], outH, outW, idim[3]))
	return b.NewPoolInst(dest, input, srcXY, pool, kernel, stride, pad)
}

// FullyConnected emits a dense layer: the input's non-batch axes are
// flattened into one feature axis, and the output is (batch, outDepth). It
// allocates the weight matrix (Xavier-initialized with fan-in = features) and
// the bias (broadcast 0.1).
func (b *Builder) FullyConnected(input Value, outDepth int) *FullyConnectedInst {
	batch, features, err := flattenLeading(input.Dims())
	if err != nil {
		exceptions.Panicf("invalid IR construction: fullyconnected: %v", err)
	}

	weights := b.NewVariable(input.ElemKind(), []int{outDepth, features},
		"weights", InitXavier, ShareWeight, float32(features))
	bias := b.NewVariable(input.ElemKind(), []int{outDepth},
		"bias", InitBroadcast, ShareWeight, 0.1)

	dest := b.newActivation(b.module.UniqueType(input.ElemKind(), batch, outDepth))
	return b.NewFullyConnectedInst(dest, input, weights, bias, outDepth)
}

// Relu emits an elementwise rectifier; the output has the input's type.
func (b *Builder) Relu(input Value) *ReluInst {
	return b.NewReluInst(b.newActivation(input.Type()), input)
}

// Sigmoid emits an elementwise logistic function; the output has the input's
// type.
func (b *Builder) Sigmoid(input Value) *SigmoidInst {
	return b.NewSigmoidInst(b.newActivation(input.Type()), input)
}

// Tanh emits an elementwise hyperbolic tangent; the output has the input's
// type.
func (b *Builder) Tanh(input Value) *TanhInst {
	return b.NewTanhInst(b.newActivation(input.Type()), input)
}

// SoftMax emits a softmax of the input. Selected is the ground-truth index
// operand; the internal "expected" buffer of the input's type is allocated
// for cross-entropy bookkeeping.
func (b *Builder) SoftMax(input, selected Value) *SoftMaxInst {
	dest := b.newActivation(input.Type())
	expected := b.newVariableOfType(input.Type(), "expected", InitExtern, ShareActivation, 0)
	return b.NewSoftMaxInst(dest, input, expected, selected)
}

// Regression emits a regression output node; the output has the input's
// type.
func (b *Builder) Regression(input, expected Value) *RegressionInst {
	return b.NewRegressionInst(b.newActivation(input.Type()), input, expected)
}

// Reshape emits a reinterpretation of input with the given dimensions, which
// must keep the total element count.
func (b *Builder) Reshape(input Value, dims []int) *ReshapeInst {
	if dimsSize(dims) != input.Type().Size() {
		exceptions.Panicf("invalid IR construction: reshape of %s into %v changes the element count",
			input.Type(), dims)
	}
	dest := b.newActivation(b.module.UniqueType(input.ElemKind(), dims...))
	return b.NewReshapeInst(dest, input, dims)
}

// Transpose emits an axis permutation of input: output dims[i] = input
// dims[shuffle[i]].
func (b *Builder) Transpose(input Value, shuffle []int) *TransposeInst {
	if !isPermutation(shuffle, input.Type().Rank()) {
		exceptions.Panicf("invalid IR construction: transpose shuffle %v is not a permutation of the axes of %s",
			shuffle, input.Type())
	}
	dims := permuteDims(input.Dims(), shuffle)
	dest := b.newActivation(b.module.UniqueType(input.ElemKind(), dims...))
	return b.NewTransposeInst(dest, input, shuffle)
}

// Concat emits a stacking of the inputs along the given axis. All inputs
// must share the same shape; the output's extent on that axis is the common
// extent times the number of inputs.
func (b *Builder) Concat(inputs []Value, axis int) *ConcatInst {
	if len(inputs) < 2 {
		exceptions.Panicf("invalid IR construction: concat needs at least 2 inputs, got %d", len(inputs))
	}
	first := inputs[0]
	if axis < 0 || axis >= first.Type().Rank() {
		exceptions.Panicf("invalid IR construction: concat axis %d out of range for %s", axis, first.Type())
	}
	for _, in := range inputs[1:] {
		if in.Type() != first.Type() {
			exceptions.Panicf("invalid IR construction: concat inputs disagree: %s vs %s",
				first.Type(), in.Type())
		}
	}

	// Stacking along axis: the extent on that axis grows by the input count.
	dims := append([]int(nil), first.Dims()...)
	dims[axis] *= len(inputs)

	dest := b.newActivation(b.module.UniqueType(first.ElemKind(), dims...))
	return b.NewConcatInst(dest, inputs, axis)
}

// BatchNormalization emits a per-channel normalization of input at the given
// channel axis. It allocates the learnable beta (broadcast 0) and gamma
// (broadcast 1), and the mean/variance running-statistic buffers populated
// outside this core.
func (b *Builder) BatchNormalization(input Value, channelAxis int, epsilon, momentum float32) *BatchNormalizationInst {
	rank := input.Type().Rank()
	if channelAxis < 0 || channelAxis >= rank {
		exceptions.Panicf("invalid IR construction: batchnormalization channel axis %d out of range for %s",
			channelAxis, input.Type())
	}
	channels := input.Dims()[channelAxis]

	beta := b.NewVariable(input.ElemKind(), []int{channels},
		"beta", InitBroadcast, ShareWeight, 0.0)
	gamma := b.NewVariable(input.ElemKind(), []int{channels},
		"gamma", InitBroadcast, ShareWeight, 1.0)
	mean := b.NewVariable(input.ElemKind(), []int{channels},
		"mean", InitRunningStat, ShareWeight, 0)
	variance := b.NewVariable(input.ElemKind(), []int{channels},
		"variance", InitRunningStat, ShareWeight, 0)

	dest := b.newActivation(input.Type())
	return b.NewBatchNormalizationInst(dest, input, gamma, beta, mean, variance,
		channelAxis, epsilon, momentum)
}

// Arithmetic emits an elementwise binary operation; lhs and rhs must have
// the same type, which is also the output's type.
func (b *Builder) Arithmetic(lhs, rhs Value, op ArithOp) *ArithmeticInst {
	if lhs.Type() != rhs.Type() {
		exceptions.Panicf("invalid IR construction: arithmetic operand types disagree: %s vs %s",
			lhs.Type(), rhs.Type())
	}
	return b.NewArithmeticInst(b.newActivation(lhs.Type()), lhs, rhs, op)
}

// newInstr checks operand ownership and builds the shared instruction part.
func (b *Builder) newInstr(kind opkinds.OpKind, operands ...Operand) instruction {
	for _, op := range operands {
		if !b.module.owns(op.Value) {
			exceptions.Panicf("invalid IR construction: %s operand %q does not belong to module %q",
				kind, op.Value.Name(), b.module.name)
		}
	}
	return instruction{name: b.module.uniqueName(kind.String()), operands: operands}
}

// NewCopyInst appends a copy of src into dest.
func (b *Builder) NewCopyInst(dest, src Value) *CopyInst {
	instr := &CopyInst{
		instruction: b.newInstr(opkinds.Copy, Operand{dest, Out}, Operand{src, In}),
	}
	b.module.pushInstr(instr)
	return instr
}

// NewConvolutionInst appends a convolution with the given output, filter and
// bias buffers.
func (b *Builder) NewConvolutionInst(dest, src, filter, bias Value, kernel, stride, pad, depth int) *ConvolutionInst {
	instr := &ConvolutionInst{
		instruction: b.newInstr(opkinds.Convolution,
			Operand{dest, Out}, Operand{src, In}, Operand{filter, In}, Operand{bias, In}),
		Kernel: kernel, Stride: stride, Pad: pad, Depth: depth,
	}
	b.module.pushInstr(instr)
	return instr
}

// NewPoolInst appends a pooling with the given output and coordinate-cache
// buffers.
func (b *Builder) NewPoolInst(dest, src, srcXY Value, pool PoolOp, kernel, stride, pad int) *PoolInst {
	instr := &PoolInst{
		instruction: b.newInstr(opkinds.Pool,
			Operand{dest, Out}, Operand{src, In}, Operand{srcXY, InOut}),
		Pool: pool, Kernel: kernel, Stride: stride, Pad: pad,
	}
	b.module.pushInstr(instr)
	return instr
}

// NewFullyConnectedInst appends a dense layer with the given output, weight
// and bias buffers.
func (b *Builder) NewFullyConnectedInst(dest, src, weights, bias Value, depth int) *FullyConnectedInst {
	instr := &FullyConnectedInst{
		instruction: b.newInstr(opkinds.FullyConnected,
			Operand{dest, Out}, Operand{src, In}, Operand{weights, In}, Operand{bias, In}),
		Depth: depth,
	}
	b.module.pushInstr(instr)
	return instr
}

// NewReluInst appends an elementwise rectifier.
func (b *Builder) NewReluInst(dest, src Value) *ReluInst {
	instr := &ReluInst{
		instruction: b.newInstr(opkinds.Relu, Operand{dest, Out}, Operand{src, In}),
	}
	b.module.pushInstr(instr)
	return instr
}

// NewSigmoidInst appends an elementwise logistic function.
func (b *Builder) NewSigmoidInst(dest, src Value) *SigmoidInst {
	instr := &SigmoidInst{
		instruction: b.newInstr(opkinds.Sigmoid, Operand{dest, Out}, Operand{src, In}),
	}
	b.module.pushInstr(instr)
	return instr
}

// NewTanhInst appends an elementwise hyperbolic tangent.
func (b *Builder) NewTanhInst(dest, src Value) *TanhInst {
	instr := &TanhInst{
		instruction: b.newInstr(opkinds.Tanh, Operand{dest, Out}, Operand{src, In}),
	}
	b.module.pushInstr(instr)
	return instr
}

// NewSoftMaxInst appends a softmax with the given bookkeeping and
// ground-truth buffers.
func (b *Builder) NewSoftMaxInst(dest, src, expected, selected Value) *SoftMaxInst {
	instr := &SoftMaxInst{
		instruction: b.newInstr(opkinds.SoftMax,
			Operand{dest, Out}, Operand{src, In}, Operand{expected, InOut}, Operand{selected, In}),
	}
	b.module.pushInstr(instr)
	return instr
}

// NewRegressionInst appends a regression output node.
func (b *Builder) NewRegressionInst(dest, src, expected Value) *RegressionInst {
	instr := &RegressionInst{
		instruction: b.newInstr(opkinds.Regression,
			Operand{dest, Out}, Operand{src, In}, Operand{expected, In}),
	}
	b.module.pushInstr(instr)
	return instr
}

// NewReshapeInst appends a reshape into the given dimensions.
func (b *Builder) NewReshapeInst(dest, src Value, dims []int) *ReshapeInst {
	instr := &ReshapeInst{
		instruction: b.newInstr(opkinds.Reshape, Operand{dest, Out}, Operand{src, In}),
		Dims:        append([]int(nil), dims...),
	}
	b.module.pushInstr(instr)
	return instr
}

// NewTransposeInst appends an axis permutation.
func (b *Builder) NewTransposeInst(dest, src Value, shuffle []int) *TransposeInst {
	instr := &TransposeInst{
		instruction: b.newInstr(opkinds.Transpose, Operand{dest, Out}, Operand{src, In}),
		Shuffle:     append([]int(nil), shuffle...),
	}
	b.module.pushInstr(instr)
	return instr
}

// NewConcatInst appends a stacking of two or more sources along axis.
func (b *Builder) NewConcatInst(dest Value, src []Value, axis int) *ConcatInst {
	if len(src) < 2 {
		exceptions.Panicf("invalid IR construction: concat needs at least 2 sources, got %d", len(src))
	}
	operands := make([]Operand, 0, 1+len(src))
	operands = append(operands, Operand{dest, Out})
	for _, s := range src {
		operands = append(operands, Operand{s, In})
	}
	instr := &ConcatInst{
		instruction: b.newInstr(opkinds.Concat, operands...),
		Axis:        axis,
	}
	b.module.pushInstr(instr)
	return instr
}

// NewBatchNormalizationInst appends a per-channel normalization with the
// given parameter and statistic buffers.
func (b *Builder) NewBatchNormalizationInst(dest, src, gamma, beta, mean, variance Value,
	channelAxis int, epsilon, momentum float32) *BatchNormalizationInst {
	instr := &BatchNormalizationInst{
		instruction: b.newInstr(opkinds.BatchNormalization,
			Operand{dest, Out}, Operand{src, In}, Operand{gamma, In}, Operand{beta, In},
			Operand{mean, InOut}, Operand{variance, InOut}),
		ChannelAxis: channelAxis, Epsilon: epsilon, Momentum: momentum,
	}
	b.module.pushInstr(instr)
	return instr
}

// NewArithmeticInst appends an elementwise binary operation.
func (b *Builder) NewArithmeticInst(dest, lhs, rhs Value, op ArithOp) *ArithmeticInst {
	instr := &ArithmeticInst{
		instruction: b.newInstr(opkinds.Arithmetic,
			Operand{dest, Out}, Operand{lhs, In}, Operand{rhs, In}),
		Arith: op,
	}
	b.module.pushInstr(instr)
	return instr
}
