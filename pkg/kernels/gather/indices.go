// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gather

import (
	"github.com/gomlx/gather/pkg/core/dtypes"
	"github.com/gomlx/gather/pkg/core/tensors"
	"github.com/pkg/errors"
)

// IndexAccessor gives width-agnostic read access to the flattened values of an indices tensor.
//
// The only implementations are Int32Indices and Int64Indices.
type IndexAccessor interface {
	// Len returns the number of indices.
	Len() int

	// At returns the raw (not normalized) index value at position i.
	At(i int) int64
}

// Int32Indices is an IndexAccessor over int32 values.
type Int32Indices []int32

// Len implements IndexAccessor.
func (x Int32Indices) Len() int { return len(x) }

// At implements IndexAccessor.
func (x Int32Indices) At(i int) int64 { return int64(x[i]) }

// Int64Indices is an IndexAccessor over int64 values.
type Int64Indices []int64

// Len implements IndexAccessor.
func (x Int64Indices) Len() int { return len(x) }

// At implements IndexAccessor.
func (x Int64Indices) At(i int) int64 { return x[i] }

var (
	_ IndexAccessor = Int32Indices(nil)
	_ IndexAccessor = Int64Indices(nil)
)

// NewIndexAccessor returns an IndexAccessor reading directly from the flat data of indices (no copy).
//
// It returns an *UnsupportedIndexTypeError if indices is neither Int32 nor Int64.
func NewIndexAccessor(indices *tensors.Tensor) (IndexAccessor, error) {
	if err := indices.CheckValid(); err != nil {
		return nil, errors.WithMessage(err, "gather indices")
	}
	var acc IndexAccessor
	switch indices.DType() {
	case dtypes.Int32:
		tensors.ConstFlatData(indices, func(flat []int32) { acc = Int32Indices(flat) })
	case dtypes.Int64:
		tensors.ConstFlatData(indices, func(flat []int64) { acc = Int64Indices(flat) })
	default:
		return nil, errors.WithStack(&UnsupportedIndexTypeError{DType: indices.DType()})
	}
	return acc, nil
}

// ValidateIndices checks that every index is within [-axisExtent, axisExtent-1].
//
// All values are checked, and the first violation is returned as an *OutOfBoundsError.
func ValidateIndices(acc IndexAccessor, axisExtent int) error {
	extent := int64(axisExtent)
	for i := range acc.Len() {
		v := acc.At(i)
		if v < -extent || v >= extent {
			return errors.WithStack(&OutOfBoundsError{Position: i, Value: v, AxisExtent: axisExtent})
		}
	}
	return nil
}

// NormalizeIndex maps a validated index in [-axisExtent, axisExtent-1] to [0, axisExtent).
func NormalizeIndex(v int64, axisExtent int) int {
	if v < 0 {
		v += int64(axisExtent)
	}
	return int(v)
}
