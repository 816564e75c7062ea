// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dtypes

import (
	"reflect"
	"testing"

	"github.com/gomlx/gather/pkg/core/dtypes/bfloat16"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestMapOfNames(t *testing.T) {
	require.Equal(t, Float16, MapOfNames["Float16"])
	require.Equal(t, Float16, MapOfNames["float16"])
	require.Equal(t, Float16, MapOfNames["f16"])
	require.Equal(t, BFloat16, MapOfNames["bf16"])
	require.Equal(t, String, MapOfNames["string"])
	require.Equal(t, Int32, MapOfNames["Int32"])
}

func TestSizes(t *testing.T) {
	assert.Equal(t, 1, Bool.Size())
	assert.Equal(t, 2, Float16.Size())
	assert.Equal(t, 2, BFloat16.Size())
	assert.Equal(t, 4, Int32.Size())
	assert.Equal(t, 8, Int64.Size())
	assert.Equal(t, 16, Complex128.Size())
	assert.Equal(t, int(reflect.TypeOf("").Size()), String.Size())
	require.Panics(t, func() { _ = InvalidDType.Size() })
}

func TestIsManaged(t *testing.T) {
	for dtype := Bool; dtype <= Complex128; dtype++ {
		assert.Falsef(t, dtype.IsManaged(), "dtype %s", dtype)
	}
	assert.True(t, String.IsManaged())
}

func TestIsIntAndIsFloat(t *testing.T) {
	for _, dtype := range []DType{Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64} {
		assert.Truef(t, dtype.IsInt(), "dtype %s", dtype)
		assert.Falsef(t, dtype.IsFloat(), "dtype %s", dtype)
	}
	for _, dtype := range []DType{Float16, BFloat16, Float32, Float64} {
		assert.Truef(t, dtype.IsFloat(), "dtype %s", dtype)
		assert.Falsef(t, dtype.IsInt(), "dtype %s", dtype)
	}
	for _, dtype := range []DType{Bool, Complex64, Complex128, String, InvalidDType} {
		assert.Falsef(t, dtype.IsInt(), "dtype %s", dtype)
		assert.Falsef(t, dtype.IsFloat(), "dtype %s", dtype)
	}
}

func TestFromGoType(t *testing.T) {
	assert.Equal(t, Float16, FromGenericsType[float16.Float16]())
	assert.Equal(t, BFloat16, FromGenericsType[bfloat16.BFloat16]())
	assert.Equal(t, String, FromGenericsType[string]())
	assert.Equal(t, Uint8, FromAny(uint8(3)))
	assert.Equal(t, InvalidDType, FromAny(struct{}{}))
	for dtype := Bool; dtype <= String; dtype++ {
		assert.Equal(t, dtype, FromGoType(dtype.GoType()))
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "Float32", Float32.String())
	assert.Equal(t, "DType(99)", DType(99).String())
	assert.False(t, DType(99).IsValid())
	assert.False(t, InvalidDType.IsValid())
	assert.True(t, String.IsValid())
}
