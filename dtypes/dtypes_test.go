package dtypes

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestDType_GoTypeAndMemory(t *testing.T) {
	require.Equal(t, reflect.TypeOf(float32(0)), Float32.GoType())
	require.Equal(t, reflect.TypeOf(float16.Float16(0)), Float16.GoType())
	require.Equal(t, uintptr(2), Float16.Memory())
	require.Equal(t, uintptr(4), Float32.Memory())
	require.Equal(t, uintptr(8), Index.Memory())
	require.Nil(t, InvalidDType.GoType())
	require.Equal(t, uintptr(0), InvalidDType.Memory())
}

func TestMapOfNames(t *testing.T) {
	require.Equal(t, Float16, MapOfNames["float16"])
	require.Equal(t, Float16, MapOfNames["F16"])
	require.Equal(t, Float16, MapOfNames["f16"])

	require.Equal(t, Float32, MapOfNames["float32"])
	require.Equal(t, Float32, MapOfNames["F32"])
	require.Equal(t, Index, MapOfNames["index"])
	require.Equal(t, Int64, MapOfNames["i64"])
}

func TestDType_Predicates(t *testing.T) {
	require.True(t, Float16.IsFloat())
	require.True(t, Float32.IsFloat())
	require.False(t, Index.IsFloat())

	require.True(t, Index.IsInt())
	require.True(t, Uint8.IsInt())
	require.False(t, Float64.IsInt())
	require.False(t, Bool.IsInt())

	require.True(t, Float32.IsSupported())
	require.False(t, InvalidDType.IsSupported())
	require.False(t, DType(255).IsSupported())
}

func TestDType_String(t *testing.T) {
	require.Equal(t, "float32", Float32.String())
	require.Equal(t, "int64", Index.String())
	require.Equal(t, "invalid", InvalidDType.String())
	require.Equal(t, "invalid", DType(255).String())
}
