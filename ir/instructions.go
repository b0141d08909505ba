package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomlx/tensorir/ir/opkinds"
)

// Access tags how an instruction uses one of its operands.
type Access int

const (
	// In marks an operand the instruction only reads.
	In Access = iota

	// Out marks an operand the instruction writes. By convention operand 0
	// is the instruction's output.
	Out

	// InOut marks an operand the instruction both reads and writes.
	InOut
)

var accessNames = [...]string{"in", "out", "inout"}

// String implements fmt.Stringer.
func (a Access) String() string {
	if a < 0 || int(a) >= len(accessNames) {
		return "invalid"
	}
	return accessNames[a]
}

// Operand is a value reference plus the access mode the instruction uses it
// with.
type Operand struct {
	Value  Value
	Access Access
}

// instruction is the part shared by all variants: the ordered operand list
// and a name unique within the owning Module.
type instruction struct {
	name     string
	operands []Operand
}

func (in *instruction) Name() string { return in.name }

// Operands returns the ordered operand list. Operand 0 is the output.
func (in *instruction) Operands() []Operand { return in.operands }

// Dest returns the instruction's result: the value of operand 0.
func (in *instruction) Dest() Value { return in.operands[0].Value }

// NumOperands is a shortcut for len(Operands()).
func (in *instruction) NumOperands() int { return len(in.operands) }

func (in *instruction) isInstruction() {}

// Instruction is one operation of the IR, over an ordered list of typed
// operands. The set of variants is closed (see opkinds.OpKind): verification
// and rendering switch exhaustively over the concrete types below.
type Instruction interface {
	// Kind identifies the variant.
	Kind() opkinds.OpKind

	// Name returns the instruction's name, unique within its Module.
	Name() string

	// Operands returns the ordered operand list; operand 0 is the output.
	Operands() []Operand

	// Dest returns the instruction's result value.
	Dest() Value

	// NumOperands is a shortcut for len(Operands()).
	NumOperands() int

	isInstruction()
}

// CopyInst copies src (operand 1) into dest (operand 0).
type CopyInst struct{ instruction }

func (*CopyInst) Kind() opkinds.OpKind { return opkinds.Copy }

// ConvolutionInst is a 2D convolution: operands are dest, src, filter, bias.
// Src is in NHWC layout; the filter holds Depth kernels of shape
// Kernel x Kernel x inputChannels.
type ConvolutionInst struct {
	instruction
	Kernel, Stride, Pad, Depth int
}

func (*ConvolutionInst) Kind() opkinds.OpKind { return opkinds.Convolution }

// PoolOp selects the pooling operation of a PoolInst.
type PoolOp int

const (
	PoolMax PoolOp = iota
	PoolAvg
)

var poolOpNames = [...]string{"max", "avg"}

// String implements fmt.Stringer.
func (p PoolOp) String() string {
	if p < 0 || int(p) >= len(poolOpNames) {
		return "invalid"
	}
	return poolOpNames[p]
}

// PoolInst is a 2D pooling: operands are dest, src and srcXY, the coordinate
// cache that records, for max-pooling, the (row, col) of the selected element
// of each window. For average pooling srcXY is a scalar placeholder.
type PoolInst struct {
	instruction
	Pool                PoolOp
	Kernel, Stride, Pad int
}

func (*PoolInst) Kind() opkinds.OpKind { return opkinds.Pool }

// FullyConnectedInst is a dense layer over the flattened input: operands are
// dest, src, weights, bias.
type FullyConnectedInst struct {
	instruction
	Depth int
}

func (*FullyConnectedInst) Kind() opkinds.OpKind { return opkinds.FullyConnected }

// ReluInst is the elementwise rectifier: operands are dest, src.
type ReluInst struct{ instruction }

func (*ReluInst) Kind() opkinds.OpKind { return opkinds.Relu }

// SigmoidInst is the elementwise logistic function: operands are dest, src.
type SigmoidInst struct{ instruction }

func (*SigmoidInst) Kind() opkinds.OpKind { return opkinds.Sigmoid }

// TanhInst is the elementwise hyperbolic tangent: operands are dest, src.
type TanhInst struct{ instruction }

func (*TanhInst) Kind() opkinds.OpKind { return opkinds.Tanh }

// SoftMaxInst normalizes src into a probability distribution. Operands are
// dest, src, expected (the cross-entropy bookkeeping buffer, read and
// written) and selected (the ground-truth index).
type SoftMaxInst struct{ instruction }

func (*SoftMaxInst) Kind() opkinds.OpKind { return opkinds.SoftMax }

// RegressionInst forwards src to dest while recording the expected values for
// a loss computation. Operands are dest, src, expected.
type RegressionInst struct{ instruction }

func (*RegressionInst) Kind() opkinds.OpKind { return opkinds.Regression }

// ReshapeInst reinterprets src with new dimensions of the same total element
// count. Operands are dest, src.
type ReshapeInst struct {
	instruction
	Dims []int
}

func (*ReshapeInst) Kind() opkinds.OpKind { return opkinds.Reshape }

// TransposeInst permutes the axes of src: dest dims[i] = src dims[Shuffle[i]].
// Operands are dest, src.
type TransposeInst struct {
	instruction
	Shuffle []int
}

func (*TransposeInst) Kind() opkinds.OpKind { return opkinds.Transpose }

// ConcatInst stacks its inputs along Axis: operands are dest followed by two
// or more sources of identical shape.
type ConcatInst struct {
	instruction
	Axis int
}

func (*ConcatInst) Kind() opkinds.OpKind { return opkinds.Concat }

// BatchNormalizationInst normalizes src per channel. Operands are dest, src,
// gamma, beta, mean, variance; mean and variance are running statistics
// maintained outside this core.
type BatchNormalizationInst struct {
	instruction
	ChannelAxis       int
	Epsilon, Momentum float32
}

func (*BatchNormalizationInst) Kind() opkinds.OpKind { return opkinds.BatchNormalization }

// ArithOp selects the operation of an ArithmeticInst.
type ArithOp int

const (
	ArithAdd ArithOp = iota
	ArithMul
)

var arithOpNames = [...]string{"add", "mul"}

// String implements fmt.Stringer.
func (a ArithOp) String() string {
	if a < 0 || int(a) >= len(arithOpNames) {
		return "invalid"
	}
	return arithOpNames[a]
}

// ArithmeticInst is an elementwise binary operation: operands are dest, lhs,
// rhs.
type ArithmeticInst struct {
	instruction
	Arith ArithOp
}

func (*ArithmeticInst) Kind() opkinds.OpKind { return opkinds.Arithmetic }

// extraDesc renders the attribute part of an instruction's dump line, e.g.
// "[5 1 2 16]" for a convolution. Elementwise variants have none.
func extraDesc(instr Instruction) string {
	switch in := instr.(type) {
	case *ConvolutionInst:
		return intsDesc(in.Kernel, in.Stride, in.Pad, in.Depth)
	case *PoolInst:
		return in.Pool.String() + " " + intsDesc(in.Kernel, in.Stride, in.Pad)
	case *FullyConnectedInst:
		return intsDesc(in.Depth)
	case *ReshapeInst:
		return intSliceDesc(in.Dims)
	case *TransposeInst:
		return intSliceDesc(in.Shuffle)
	case *ConcatInst:
		return "{ " + strconv.Itoa(in.Axis) + " }"
	case *BatchNormalizationInst:
		return fmt.Sprintf("[%d %g %g]", in.ChannelAxis, in.Epsilon, in.Momentum)
	case *ArithmeticInst:
		return in.Arith.String()
	}
	return ""
}

// Describe renders an instruction as a single dump line:
// "%name = kind [attrs] @out %dest, @in %src, ...".
func Describe(instr Instruction) string {
	var sb strings.Builder
	sb.WriteString("%" + instr.Name() + " = " + instr.Kind().String())
	if extra := extraDesc(instr); extra != "" {
		sb.WriteString(" " + extra)
	}
	for i, op := range instr.Operands() {
		if i == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString("@" + op.Access.String() + " %" + op.Value.Name())
	}
	return sb.String()
}
