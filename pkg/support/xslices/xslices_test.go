// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package xslices

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillSlice(t *testing.T) {
	s := make([]string, 5)
	FillSlice(s, "a")
	assert.Equal(t, []string{"a", "a", "a", "a", "a"}, s)
	FillSlice([]int{}, 1)
}

func TestIota(t *testing.T) {
	assert.Equal(t, []int64{3, 4, 5}, Iota(int64(3), 3))
	assert.Equal(t, []float64{0.5, 1.5}, Iota(0.5, 2))
	assert.Empty(t, Iota(int32(0), 0))
}

func TestSliceFlag(t *testing.T) {
	f := NewSliceFlag([]int64{1}, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
	assert.Equal(t, "1", f.String())
	require.NoError(t, f.Set("2, -1,0"))
	assert.Equal(t, []int64{2, -1, 0}, f.Values())
	require.Error(t, f.Set("2,x"))
	assert.Equal(t, []int64{2, -1, 0}, f.Values())
	require.NoError(t, f.Set(""))
	assert.Empty(t, f.Values())
}
