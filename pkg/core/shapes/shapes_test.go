// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"testing"

	"github.com/gomlx/gather/pkg/core/dtypes"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	invalidShape := Invalid()
	require.False(t, invalidShape.Ok())

	shape0 := Make(dtypes.Float64)
	require.True(t, shape0.Ok())
	require.True(t, shape0.IsScalar())
	require.Equal(t, 0, shape0.Rank())
	require.Equal(t, 1, shape0.Size())
	require.Equal(t, 8, int(shape0.Memory()))

	shape1 := Make(dtypes.Float32, 4, 3, 2)
	require.False(t, shape1.IsScalar())
	require.Equal(t, 3, shape1.Rank())
	require.Equal(t, 4*3*2, shape1.Size())
	require.Equal(t, 4*4*3*2, int(shape1.Memory()))
	require.Equal(t, "(Float32)[4 3 2]", shape1.String())
	require.True(t, shape1.Equal(shape1.Clone()))
	require.False(t, shape1.Equal(Make(dtypes.Int32, 4, 3, 2)))
	require.True(t, shape1.EqualDimensions(Make(dtypes.Int32, 4, 3, 2)))

	empty := Make(dtypes.String, 2, 0, 3)
	require.True(t, empty.IsZeroSize())
	require.Equal(t, 0, empty.Size())

	require.Panics(t, func() { _ = Make(dtypes.Float32, 2, -1) })
	require.Panics(t, func() { _ = Make(dtypes.Float32, 1<<32, 1<<32) })
	require.Equal(t, dtypes.Int64, Scalar[int64]().DType)
}

func TestCheckDimensions(t *testing.T) {
	require.NoError(t, CheckDimensions(dtypes.Float32, 4, 3, 2))
	require.NoError(t, CheckDimensions(dtypes.Float32))
	require.ErrorContains(t, CheckDimensions(dtypes.Float32, 3, -1), "< 0")

	// 2^32 * 2^32 wraps to 0 if multiplied unchecked.
	require.ErrorContains(t, CheckDimensions(dtypes.Float32, 1<<32, 1<<32), "overflow")

	// Elements fit in an int, but not their bytes.
	require.NoError(t, CheckDimensions(dtypes.Uint8, 1<<31, 1<<31))
	require.Error(t, CheckDimensions(dtypes.Float64, 1<<31, 1<<31))

	// A zero dimension makes the shape empty, regardless of the others.
	require.NoError(t, CheckDimensions(dtypes.Float32, 1<<40, 0, 1<<40))
}

func TestDim(t *testing.T) {
	shape := Make(dtypes.Float32, 4, 3, 2)
	require.Equal(t, 4, shape.Dim(0))
	require.Equal(t, 2, shape.Dim(2))
	require.Equal(t, 4, shape.Dim(-3))
	require.Equal(t, 2, shape.Dim(-1))
	require.Panics(t, func() { _ = shape.Dim(3) })
	require.Panics(t, func() { _ = shape.Dim(-4) })
}

func TestSizeToAndFromAxis(t *testing.T) {
	shape := Make(dtypes.Float32, 4, 3, 2)
	require.Equal(t, 1, shape.SizeToAxis(0))
	require.Equal(t, 12, shape.SizeToAxis(2))
	require.Equal(t, 24, shape.SizeFromAxis(0))
	require.Equal(t, 6, shape.SizeFromAxis(1))
	require.Equal(t, 1, shape.SizeFromAxis(3))
}

func TestStridesAndIter(t *testing.T) {
	shape := Make(dtypes.Int8, 2, 3)
	require.Equal(t, []int{3, 1}, shape.Strides())

	var got [][]int
	for flatIdx, indices := range shape.Iter() {
		require.Equal(t, len(got), flatIdx)
		got = append(got, append([]int(nil), indices...))
	}
	require.Equal(t, [][]int{{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 1}, {1, 2}}, got)

	count := 0
	for range Make(dtypes.Int8).Iter() {
		count++
	}
	require.Equal(t, 1, count)

	for range Make(dtypes.Int8, 3, 0).Iter() {
		t.Fatal("zero-sized shape should not iterate")
	}
}
