// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gather

import (
	"testing"

	"github.com/gomlx/gather/pkg/core/dtypes"
	"github.com/gomlx/gather/pkg/core/shapes"
	"github.com/gomlx/gather/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanShape(t *testing.T) {
	testCases := []struct {
		name          string
		data, indices []int
		axis          int
		wantAxis      int
		want          []int
	}{
		{"axis0", []int{3, 4}, []int{2}, 0, 0, []int{2, 4}},
		{"negativeAxis", []int{2, 3}, []int{1, 2}, -1, 1, []int{2, 1, 2}},
		{"middle", []int{2, 3, 4, 5}, []int{6, 7}, 2, 2, []int{2, 3, 6, 7, 5}},
		{"scalarIndices", []int{3, 4}, nil, 1, 1, []int{3}},
		{"emptyIndices", []int{3, 4}, []int{0}, -2, 0, []int{0, 4}},
		{"rank1", []int{3}, []int{1}, 0, 0, []int{1}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dataShape := shapes.Make(dtypes.Float16, tc.data...)
			indicesShape := shapes.Make(dtypes.Int32, tc.indices...)
			axis, output, err := PlanShape(dataShape, indicesShape, tc.axis)
			require.NoError(t, err)
			assert.Equal(t, tc.wantAxis, axis)
			assert.Equal(t, dtypes.Float16, output.DType)
			assert.Equal(t, len(tc.want), output.Rank())
			if len(tc.want) > 0 {
				assert.Equal(t, tc.want, output.Dimensions)
			}
			// Inputs are not modified.
			assert.Equal(t, shapes.Make(dtypes.Float16, tc.data...), dataShape)
		})
	}

	_, _, err := PlanShape(shapes.Make(dtypes.Int8, 2, 2), shapes.Make(dtypes.Int64, 1), 2)
	var invalidAxis *InvalidAxisError
	require.ErrorAs(t, err, &invalidAxis)
	assert.Equal(t, "invalid axis 2: must be within the inclusive range [-2,1] for data of rank 2", invalidAxis.Error())
	_, _, err = PlanShape(shapes.Make(dtypes.Int8), shapes.Make(dtypes.Int64, 1), 0)
	require.ErrorAs(t, err, &invalidAxis)
}

func TestNewCopyPlan(t *testing.T) {
	// Float32 data [2,3,4,5], gathering 6 indices on axis 1.
	plan := NewCopyPlan(shapes.Make(dtypes.Float32, 2, 3, 4, 5), 1, 6)
	assert.Equal(t, CopyPlan{
		BlockElems:             20,
		BlockBytes:             80,
		OuterCount:             2,
		IndexCount:             6,
		AxisExtent:             3,
		ElementSize:            4,
		SourceBatchStrideBytes: 240,
		DestBatchStrideBytes:   480,
		SourceBatchStride:      60,
		DestBatchStride:        120,
	}, plan)
	assert.Equal(t, 12, plan.Total())
	assert.False(t, plan.IsEmpty())
	assert.Equal(t, "CopyPlan{batches=2, indices=6, axisExtent=3, block=20 elements (80 B)}", plan.String())

	// Last axis: blocks of a single element.
	plan = NewCopyPlan(shapes.Make(dtypes.Int64, 3, 4), 1, 2)
	assert.Equal(t, 1, plan.BlockElems)
	assert.Equal(t, 8, plan.BlockBytes)
	assert.Equal(t, 3, plan.OuterCount)
	assert.Equal(t, 32, plan.SourceBatchStrideBytes)
	assert.Equal(t, 16, plan.DestBatchStrideBytes)

	// First axis: a single batch.
	plan = NewCopyPlan(shapes.Make(dtypes.Uint8, 3, 4), 0, 5)
	assert.Equal(t, 1, plan.OuterCount)
	assert.Equal(t, 4, plan.BlockBytes)

	assert.True(t, NewCopyPlan(shapes.Make(dtypes.Float32, 3, 4), 0, 0).IsEmpty())
	assert.True(t, NewCopyPlan(shapes.Make(dtypes.Float32, 3, 0), 0, 2).IsEmpty())
	assert.True(t, NewCopyPlan(shapes.Make(dtypes.Float32, 0, 4), 1, 2).IsEmpty())
}

func TestIndexAccessor(t *testing.T) {
	acc, err := NewIndexAccessor(tensors.FromValue([][]int32{{1, -2}, {3, 0}}))
	require.NoError(t, err)
	require.IsType(t, Int32Indices{}, acc)
	assert.Equal(t, 4, acc.Len())
	assert.Equal(t, int64(-2), acc.At(1))
	assert.Equal(t, int64(3), acc.At(2))

	acc, err = NewIndexAccessor(tensors.FromScalar(int64(-7)))
	require.NoError(t, err)
	require.IsType(t, Int64Indices{}, acc)
	assert.Equal(t, 1, acc.Len())
	assert.Equal(t, int64(-7), acc.At(0))

	_, err = NewIndexAccessor(tensors.FromValue([]uint64{1}))
	var unsupported *UnsupportedIndexTypeError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, dtypes.Uint64, unsupported.DType)
	_, err = NewIndexAccessor(nil)
	require.Error(t, err)
}

func TestValidateAndNormalizeIndices(t *testing.T) {
	require.NoError(t, ValidateIndices(Int64Indices{-3, -1, 0, 2}, 3))
	require.NoError(t, ValidateIndices(Int32Indices{}, 0))

	err := ValidateIndices(Int32Indices{0, 1, -4, 3}, 3)
	var oob *OutOfBoundsError
	require.ErrorAs(t, err, &oob)
	assert.Equal(t, OutOfBoundsError{Position: 2, Value: -4, AxisExtent: 3}, *oob)

	// Values beyond int32 range.
	err = ValidateIndices(Int64Indices{1 << 40}, 3)
	require.ErrorAs(t, err, &oob)
	assert.Equal(t, int64(1<<40), oob.Value)

	for v, want := range map[int64]int{-3: 0, -1: 2, 0: 0, 2: 2} {
		assert.Equalf(t, want, NormalizeIndex(v, 3), "NormalizeIndex(%d, 3)", v)
	}
}
