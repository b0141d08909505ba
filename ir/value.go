package ir

import (
	"strconv"

	"github.com/chewxy/math32"

	"github.com/gomlx/tensorir/dtypes"
)

// Value is anything with a Type: a declared buffer (*Variable) or the result
// of an instruction (its output operand's buffer).
type Value interface {
	// Type returns the interned type of the value.
	Type() *Type

	// Dims returns the dimensions of the value's type. The returned slice
	// must not be modified.
	Dims() []int

	// ElemKind returns the element kind of the value's type.
	ElemKind() dtypes.DType

	// Name returns the display name of the value, unique within its Module.
	Name() string
}

// ShareKind classifies how a buffer is shared across evaluations of the
// graph.
type ShareKind int

const (
	// ShareWeight marks a persistent, learnable buffer that may be shared
	// across invocations of the graph.
	ShareWeight ShareKind = iota

	// ShareActivation marks an ephemeral per-evaluation output or cache; it
	// owns no learned state.
	ShareActivation
)

var shareKindNames = [...]string{"weight", "activation"}

// String implements fmt.Stringer.
func (k ShareKind) String() string {
	if k < 0 || int(k) >= len(shareKindNames) {
		return "invalid"
	}
	return shareKindNames[k]
}

// InitKind is the initialization policy of a buffer.
type InitKind int

const (
	// InitExtern marks a buffer whose contents are supplied by the caller
	// (e.g. the model input). The builder must not initialize it.
	InitExtern InitKind = iota

	// InitBroadcast fills every element of the buffer with Variable.Val.
	InitBroadcast

	// InitXavier draws values uniformly from [-b, b] with b = sqrt(3/fanIn),
	// where the fan-in is stored in Variable.Val. This keeps the activation
	// variance stable at initialization.
	InitXavier

	// InitRunningStat marks a buffer holding a running statistic (e.g. the
	// batch-normalization mean) maintained by a mechanism outside this core.
	// Like InitExtern the builder must not initialize it, but downstream
	// passes can tell the two apart.
	InitRunningStat
)

var initKindNames = [...]string{"extern", "broadcast", "xavier", "runstat"}

// String implements fmt.Stringer.
func (k InitKind) String() string {
	if k < 0 || int(k) >= len(initKindNames) {
		return "invalid"
	}
	return initKindNames[k]
}

// Variable is a named buffer declaration: the unit of storage the
// instructions operate on. It is not runtime memory, only its static
// description: type, sharing classification and initialization policy.
//
// Variables are created through the Builder and owned by exactly one Module.
type Variable struct {
	typ   *Type
	name  string
	share ShareKind
	init  InitKind

	// Val is the broadcast value for InitBroadcast, or the fan-in for
	// InitXavier. Unused otherwise.
	Val float32
}

// Type returns the interned type of the variable.
func (v *Variable) Type() *Type { return v.typ }

// Dims returns the dimensions of the variable's type.
func (v *Variable) Dims() []int { return v.typ.Dims() }

// ElemKind returns the element kind of the variable's type.
func (v *Variable) ElemKind() dtypes.DType { return v.typ.DType() }

// Name returns the display name, unique within the owning Module.
func (v *Variable) Name() string { return v.name }

// Share returns the sharing classification of the buffer.
func (v *Variable) Share() ShareKind { return v.share }

// Init returns the initialization policy of the buffer.
func (v *Variable) Init() InitKind { return v.init }

// XavierBound returns the half-width b of the uniform distribution [-b, b]
// an InitXavier buffer is initialized from: sqrt(3/fanIn). It returns 0 for
// any other initialization policy.
func (v *Variable) XavierBound() float32 {
	if v.init != InitXavier || v.Val <= 0 {
		return 0
	}
	return math32.Sqrt(3.0 / v.Val)
}

// extraDesc renders the declaration line body, e.g.
// "float32<16 x 5 x 5 x 3>, weight, xavier, 75".
func (v *Variable) extraDesc() string {
	desc := v.typ.String() + ", " + v.share.String()
	switch v.init {
	case InitBroadcast, InitXavier:
		desc += ", " + v.init.String() + ", " + strconv.FormatFloat(float64(v.Val), 'g', -1, 32)
	case InitRunningStat:
		desc += ", " + v.init.String()
	}
	return desc
}

// String implements fmt.Stringer, rendering the declaration line.
func (v *Variable) String() string {
	return "%" + v.name + " = " + v.extraDesc()
}
