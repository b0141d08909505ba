package ir

import (
	"slices"
	"strconv"

	"github.com/gomlx/exceptions"

	"github.com/gomlx/tensorir/dtypes"
)

// Type describes a buffer or instruction result: its element kind and the
// extent of each axis. A rank-0 Type (no dimensions) is a scalar.
//
// Types are interned per Module (see TypeRegistry): two Types with the same
// element kind and dimensions are the same object, so pointer comparison is
// valid for structural equality.
type Type struct {
	dtype dtypes.DType
	dims  []int
}

// DType returns the element kind of the type.
func (t *Type) DType() dtypes.DType { return t.dtype }

// Dims returns the dimensions of the type. The returned slice is owned by the
// Type and must not be modified.
func (t *Type) Dims() []int { return t.dims }

// Rank returns the number of axes. Scalars have rank 0.
func (t *Type) Rank() int { return len(t.dims) }

// Size returns the total number of elements, e.g. a <3 x 5> type has size 15.
// A scalar has size 1, and any zero extent makes the size 0.
func (t *Type) Size() int { return dimsSize(t.dims) }

// String implements fmt.Stringer, e.g. "float32<16 x 5 x 5 x 3>".
func (t *Type) String() string {
	return t.dtype.String() + dimsString(t.dims)
}

// TypeRegistry interns (element kind, dimensions) pairs into canonical *Type
// values. Structurally equal requests return the same pointer, which lets all
// downstream code use identity comparison instead of deep shape comparison.
type TypeRegistry struct {
	types  map[string]*Type
	keyBuf []byte // reusable buffer for building type keys
}

// NewTypeRegistry creates an empty registry. Each Module owns one.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		types:  make(map[string]*Type, 16),
		keyBuf: make([]byte, 0, 64),
	}
}

// Get returns the canonical Type for the given element kind and dimensions,
// creating it on first use. Zero extents are legal (an empty tensor axis);
// negative extents are an invalid IR construction and panic.
func (r *TypeRegistry) Get(dtype dtypes.DType, dims ...int) *Type {
	for _, dim := range dims {
		if dim < 0 {
			exceptions.Panicf("invalid IR construction: negative dimension in shape %v", dims)
		}
	}
	key := r.typeKey(dtype, dims)
	if t, found := r.types[key]; found {
		return t
	}
	t := &Type{dtype: dtype, dims: slices.Clone(dims)}
	r.types[key] = t
	return t
}

// NumTypes returns how many distinct types have been interned.
func (r *TypeRegistry) NumTypes() int { return len(r.types) }

// typeKey builds a unique string key for the (dtype, dims) pair. Two
// structurally identical types produce the same key.
func (r *TypeRegistry) typeKey(dtype dtypes.DType, dims []int) string {
	b := r.keyBuf[:0]
	b = strconv.AppendInt(b, int64(dtype), 10)
	for _, dim := range dims {
		b = append(b, 'x')
		b = strconv.AppendInt(b, int64(dim), 10)
	}
	r.keyBuf = b
	return string(b)
}
