// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gather

import (
	"fmt"

	"github.com/gomlx/gather/pkg/core/dtypes"
	"github.com/gomlx/gather/pkg/core/shapes"
)

// InvalidAxisError is returned when the requested axis is outside [-rank, rank-1] for the data tensor.
type InvalidAxisError struct {
	Axis, Rank int
}

// Error implements error.
func (e *InvalidAxisError) Error() string {
	if e.Rank == 0 {
		return fmt.Sprintf("invalid axis %d: data is a scalar and has no axis to gather over", e.Axis)
	}
	return fmt.Sprintf("invalid axis %d: must be within the inclusive range [%d,%d] for data of rank %d",
		e.Axis, -e.Rank, e.Rank-1, e.Rank)
}

// OutOfBoundsError is returned when an index value is outside [-AxisExtent, AxisExtent-1].
// Only the first offending index (in row-major order of the indices tensor) is reported.
type OutOfBoundsError struct {
	// Position of the offending value in the flattened indices tensor.
	Position int

	// Value is the offending index value.
	Value int64

	// AxisExtent is the dimension of the data tensor along the gathered axis.
	AxisExtent int
}

// Error implements error.
func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("indices element out of data bounds, idx=%d must be within the inclusive range [%d,%d]",
		e.Value, -e.AxisExtent, e.AxisExtent-1)
}

// UnsupportedIndexTypeError is returned when the indices tensor is neither Int32 nor Int64.
type UnsupportedIndexTypeError struct {
	DType dtypes.DType
}

// Error implements error.
func (e *UnsupportedIndexTypeError) Error() string {
	msg := fmt.Sprintf("unsupported indices dtype %s: only Int32 and Int64 indices are supported", e.DType)
	if e.DType.IsInt() {
		msg += ", convert the indices to Int64"
	}
	return msg
}

// ShapeMismatchError is returned by Kernel.ComputeInto when the caller provided output doesn't
// have the shape of the gathered result.
type ShapeMismatchError struct {
	Want, Got shapes.Shape
}

// Error implements error.
func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("output tensor has shape %s, but gather produces %s", e.Got, e.Want)
}
