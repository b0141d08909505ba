// Package dtypes defines DType, the element kind of the buffers declared in
// the IR.
//
// The set of kinds is open: optimization passes (notably quantization) may
// introduce reduced-precision kinds. Adding a kind means adding a constant
// and its entries in the tables below.
//
// Go float16 support uses the github.com/x448/float16 implementation.
package dtypes

import (
	"reflect"

	"github.com/x448/float16"
)

// DType is the element kind of a buffer or instruction result.
type DType int

const (
	InvalidDType DType = iota
	Bool
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float16
	Float32
	Float64
)

// Index is the kind used for integer coordinate caches, e.g. the (row, col)
// positions selected by a max-pooling window.
const Index = Int64

// Aliases, following the usual accelerator naming.
const (
	F16 = Float16
	F32 = Float32
	F64 = Float64
	I32 = Int32
	I64 = Int64
)

var dtypeNames = [...]string{
	InvalidDType: "invalid",
	Bool:         "bool",
	Int8:         "int8",
	Int16:        "int16",
	Int32:        "int32",
	Int64:        "int64",
	Uint8:        "uint8",
	Uint16:       "uint16",
	Uint32:       "uint32",
	Uint64:       "uint64",
	Float16:      "float16",
	Float32:      "float32",
	Float64:      "float64",
}

// String implements fmt.Stringer.
func (dtype DType) String() string {
	if dtype < 0 || int(dtype) >= len(dtypeNames) {
		return "invalid"
	}
	return dtypeNames[dtype]
}

// MapOfNames maps known names and aliases to their DType. It accepts the
// plain Go-like names ("float32") and the short accelerator aliases ("F32",
// "f32").
var MapOfNames = map[string]DType{
	"bool":    Bool,
	"int8":    Int8,
	"int16":   Int16,
	"int32":   Int32,
	"int64":   Int64,
	"uint8":   Uint8,
	"uint16":  Uint16,
	"uint32":  Uint32,
	"uint64":  Uint64,
	"float16": Float16,
	"float32": Float32,
	"float64": Float64,
	"index":   Index,
	"F16":     Float16,
	"f16":     Float16,
	"F32":     Float32,
	"f32":     Float32,
	"F64":     Float64,
	"f64":     Float64,
	"I32":     Int32,
	"i32":     Int32,
	"I64":     Int64,
	"i64":     Int64,
}

var dtypeGoTypes = map[DType]reflect.Type{
	Bool:    reflect.TypeOf(false),
	Int8:    reflect.TypeOf(int8(0)),
	Int16:   reflect.TypeOf(int16(0)),
	Int32:   reflect.TypeOf(int32(0)),
	Int64:   reflect.TypeOf(int64(0)),
	Uint8:   reflect.TypeOf(uint8(0)),
	Uint16:  reflect.TypeOf(uint16(0)),
	Uint32:  reflect.TypeOf(uint32(0)),
	Uint64:  reflect.TypeOf(uint64(0)),
	Float16: reflect.TypeOf(float16.Float16(0)),
	Float32: reflect.TypeOf(float32(0)),
	Float64: reflect.TypeOf(float64(0)),
}

// GoType returns the Go type used to store one element of the given DType.
// It returns nil for InvalidDType.
func (dtype DType) GoType() reflect.Type {
	return dtypeGoTypes[dtype]
}

// Memory returns the number of bytes used to store one element of the given
// DType.
func (dtype DType) Memory() uintptr {
	t := dtype.GoType()
	if t == nil {
		return 0
	}
	return t.Size()
}

// IsFloat returns whether dtype is a floating-point kind, including the
// reduced-precision Float16.
func (dtype DType) IsFloat() bool {
	return dtype == Float16 || dtype == Float32 || dtype == Float64
}

// IsInt returns whether dtype is a signed or unsigned integer kind.
func (dtype DType) IsInt() bool {
	switch dtype {
	case Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64:
		return true
	}
	return false
}

// IsSupported returns whether the dtype is one of the kinds known to this
// package.
func (dtype DType) IsSupported() bool {
	return dtype > InvalidDType && int(dtype) < len(dtypeNames)
}
