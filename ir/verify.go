package ir

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"

	"github.com/gomlx/tensorir/dtypes"
)

// Violation describes one structural invariant broken by one instruction.
type Violation struct {
	// InstrIndex is the position of the instruction in program order.
	InstrIndex int

	// Instr is the offending instruction.
	Instr Instruction

	// Err describes the violated relation.
	Err error
}

// Error implements the error interface.
func (v Violation) Error() string {
	return fmt.Sprintf("instruction %d (%%%s = %s): %v", v.InstrIndex, v.Instr.Name(), v.Instr.Kind(), v.Err)
}

// Verify re-derives, for every instruction, the shape and type relations the
// Builder enforced at construction, so a Module can be independently
// re-checked after rewriting by optimization passes.
//
// It is a pure function of the module: it never panics, has no side effects,
// and re-running it on an unmodified module yields the same result. It
// returns one Violation per violated relation, or nil if the module is
// well-formed.
func (m *Module) Verify() []Violation {
	var violations []Violation
	for i, instr := range m.instrs {
		for _, err := range m.verifyInstruction(instr) {
			violations = append(violations, Violation{InstrIndex: i, Instr: instr, Err: err})
		}
	}
	return violations
}

// VerifyInstruction re-checks a single instruction of the module, returning
// all violated relations joined into one error, or nil.
func (m *Module) VerifyInstruction(instr Instruction) error {
	errs := m.verifyInstruction(instr)
	if len(errs) == 0 {
		return nil
	}
	return stderrors.Join(errs...)
}

// verifyInstruction collects every violated relation of one instruction.
func (m *Module) verifyInstruction(instr Instruction) []error {
	var errs []error
	for i, op := range instr.Operands() {
		if !m.owns(op.Value) {
			errs = append(errs, errors.Errorf("operand %d (%q) does not belong to module %q", i, op.Value.Name(), m.name))
		}
	}

	switch in := instr.(type) {
	case *CopyInst:
		errs = checkArity(errs, instr, 2, func(ops []Operand) []error {
			return checkSameType(nil, "src", ops[0], ops[1])
		})
	case *ConvolutionInst:
		errs = checkArity(errs, instr, 4, func(ops []Operand) []error {
			return verifyConvolution(in, ops)
		})
	case *PoolInst:
		errs = checkArity(errs, instr, 3, func(ops []Operand) []error {
			return verifyPool(in, ops)
		})
	case *FullyConnectedInst:
		errs = checkArity(errs, instr, 4, func(ops []Operand) []error {
			return verifyFullyConnected(in, ops)
		})
	case *ReluInst, *SigmoidInst, *TanhInst:
		errs = checkArity(errs, instr, 2, func(ops []Operand) []error {
			return checkSameType(nil, "src", ops[0], ops[1])
		})
	case *SoftMaxInst:
		errs = checkArity(errs, instr, 4, func(ops []Operand) []error {
			var e []error
			e = checkSameType(e, "src", ops[0], ops[1])
			e = checkSameType(e, "expected", ops[0], ops[2])
			return e
		})
	case *RegressionInst:
		errs = checkArity(errs, instr, 3, func(ops []Operand) []error {
			return checkSameType(nil, "src", ops[0], ops[1])
		})
	case *ReshapeInst:
		errs = checkArity(errs, instr, 2, func(ops []Operand) []error {
			return verifyReshape(in, ops)
		})
	case *TransposeInst:
		errs = checkArity(errs, instr, 2, func(ops []Operand) []error {
			return verifyTranspose(in, ops)
		})
	case *ConcatInst:
		if instr.NumOperands() < 3 {
			errs = append(errs, errors.Errorf("concat needs at least 2 sources, got %d", instr.NumOperands()-1))
		} else {
			errs = append(errs, verifyConcat(in, instr.Operands())...)
		}
	case *BatchNormalizationInst:
		errs = checkArity(errs, instr, 6, func(ops []Operand) []error {
			return verifyBatchNormalization(in, ops)
		})
	case *ArithmeticInst:
		errs = checkArity(errs, instr, 3, func(ops []Operand) []error {
			var e []error
			e = checkSameType(e, "lhs", ops[0], ops[1])
			e = checkSameType(e, "rhs", ops[0], ops[2])
			return e
		})
	default:
		errs = append(errs, errors.Errorf("unhandled instruction kind %s", instr.Kind()))
	}
	return errs
}

// checkArity runs check only when the operand count matches: the per-variant
// relations index operands by position and are meaningless otherwise.
func checkArity(errs []error, instr Instruction, want int, check func(ops []Operand) []error) []error {
	if instr.NumOperands() != want {
		return append(errs, errors.Errorf("expected %d operands, got %d", want, instr.NumOperands()))
	}
	return append(errs, check(instr.Operands())...)
}

// checkSameType verifies that two operands share the same interned type.
// Types are interned, so identity comparison is structural comparison.
func checkSameType(errs []error, what string, a, b Operand) []error {
	if a.Value.Type() != b.Value.Type() {
		errs = append(errs, errors.Errorf("dest and %s types differ: %s vs %s",
			what, a.Value.Type(), b.Value.Type()))
	}
	return errs
}

func verifyConvolution(in *ConvolutionInst, ops []Operand) []error {
	var errs []error
	dest, src, filter, bias := ops[0].Value, ops[1].Value, ops[2].Value, ops[3].Value

	idim := src.Dims()
	if len(idim) != 4 {
		return append(errs, errors.Errorf("src must be rank-4 (NHWC), got %s", src.Type()))
	}
	outH, outW, err := convOutputDims(idim[1], idim[2], in.Pad, in.Kernel, in.Stride)
	if err != nil {
		return append(errs, errors.WithMessage(err, "output dims"))
	}

	if exp := []int{idim[0], outH, outW, in.Depth}; !dimsEqual(dest.Dims(), exp) {
		errs = append(errs, errors.Errorf("invalid output dims: got %v, want %v", dest.Dims(), exp))
	}
	if exp := []int{in.Depth, in.Kernel, in.Kernel, idim[3]}; !dimsEqual(filter.Dims(), exp) {
		errs = append(errs, errors.Errorf("invalid filter dims: got %v, want %v", filter.Dims(), exp))
	}
	if exp := []int{in.Depth}; !dimsEqual(bias.Dims(), exp) {
		errs = append(errs, errors.Errorf("invalid bias dims: got %v, want %v", bias.Dims(), exp))
	}
	return errs
}

func verifyPool(in *PoolInst, ops []Operand) []error {
	var errs []error
	dest, src, srcXY := ops[0].Value, ops[1].Value, ops[2].Value

	idim := src.Dims()
	if len(idim) != 4 {
		return append(errs, errors.Errorf("src must be rank-4 (NHWC), got %s", src.Type()))
	}
	outH, outW, err := convOutputDims(idim[1], idim[2], in.Pad, in.Kernel, in.Stride)
	if err != nil {
		return append(errs, errors.WithMessage(err, "output dims"))
	}

	if exp := []int{idim[0], outH, outW, idim[3]}; !dimsEqual(dest.Dims(), exp) {
		errs = append(errs, errors.Errorf("invalid output dims: got %v, want %v", dest.Dims(), exp))
	}
	if in.Pool == PoolMax {
		if exp := []int{idim[0], outH, outW, idim[3], 2}; !dimsEqual(srcXY.Dims(), exp) {
			errs = append(errs, errors.Errorf("invalid srcXY dims: got %v, want %v", srcXY.Dims(), exp))
		}
		if srcXY.ElemKind() != dtypes.Index {
			errs = append(errs, errors.Errorf("srcXY must hold %s coordinates, got %s", dtypes.Index, srcXY.ElemKind()))
		}
	}
	return errs
}

func verifyFullyConnected(in *FullyConnectedInst, ops []Operand) []error {
	var errs []error
	dest, src, weights, bias := ops[0].Value, ops[1].Value, ops[2].Value, ops[3].Value

	batch, features, err := flattenLeading(src.Dims())
	if err != nil {
		return append(errs, err)
	}

	if exp := []int{batch, in.Depth}; !dimsEqual(dest.Dims(), exp) {
		errs = append(errs, errors.Errorf("invalid output dims: got %v, want %v", dest.Dims(), exp))
	}
	if exp := []int{in.Depth, features}; !dimsEqual(weights.Dims(), exp) {
		errs = append(errs, errors.Errorf("invalid weights dims: got %v, want %v", weights.Dims(), exp))
	}
	if exp := []int{in.Depth}; !dimsEqual(bias.Dims(), exp) {
		errs = append(errs, errors.Errorf("invalid bias dims: got %v, want %v", bias.Dims(), exp))
	}
	return errs
}

func verifyReshape(in *ReshapeInst, ops []Operand) []error {
	var errs []error
	dest, src := ops[0].Value, ops[1].Value
	if dest.Type().Size() != src.Type().Size() {
		errs = append(errs, errors.Errorf("reshape changes the element count: %s into %s",
			src.Type(), dest.Type()))
	}
	if !dimsEqual(dest.Dims(), in.Dims) {
		errs = append(errs, errors.Errorf("output dims %v differ from recorded dims %v", dest.Dims(), in.Dims))
	}
	return errs
}

func verifyTranspose(in *TransposeInst, ops []Operand) []error {
	dest, src := ops[0].Value, ops[1].Value
	if !isPermutation(in.Shuffle, src.Type().Rank()) {
		return []error{errors.Errorf("shuffle %v is not a permutation of the axes of %s", in.Shuffle, src.Type())}
	}
	if exp := permuteDims(src.Dims(), in.Shuffle); !dimsEqual(dest.Dims(), exp) {
		return []error{errors.Errorf("invalid output dims: got %v, want %v", dest.Dims(), exp)}
	}
	return nil
}

func verifyConcat(in *ConcatInst, ops []Operand) []error {
	var errs []error
	dest := ops[0].Value
	first := ops[1].Value

	if in.Axis < 0 || in.Axis >= first.Type().Rank() {
		return append(errs, errors.Errorf("axis %d out of range for %s", in.Axis, first.Type()))
	}
	for i, op := range ops[2:] {
		if op.Value.Type() != first.Type() {
			errs = append(errs, errors.Errorf("source %d disagrees with source 0: %s vs %s",
				i+1, op.Value.Type(), first.Type()))
		}
	}

	exp := append([]int(nil), first.Dims()...)
	exp[in.Axis] *= len(ops) - 1
	if !dimsEqual(dest.Dims(), exp) {
		errs = append(errs, errors.Errorf("invalid output dims: got %v, want %v", dest.Dims(), exp))
	}
	return errs
}

func verifyBatchNormalization(in *BatchNormalizationInst, ops []Operand) []error {
	var errs []error
	errs = checkSameType(errs, "src", ops[0], ops[1])

	src := ops[1].Value
	if in.ChannelAxis < 0 || in.ChannelAxis >= src.Type().Rank() {
		return append(errs, errors.Errorf("channel axis %d out of range for %s", in.ChannelAxis, src.Type()))
	}
	channels := src.Dims()[in.ChannelAxis]

	exp := []int{channels}
	for i, what := range []string{"gamma", "beta", "mean", "variance"} {
		v := ops[2+i].Value
		if !dimsEqual(v.Dims(), exp) {
			errs = append(errs, errors.Errorf("invalid %s dims: got %v, want %v", what, v.Dims(), exp))
		}
	}
	return errs
}
