// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gather

import (
	"github.com/gomlx/gather/pkg/core/shapes"
	"github.com/pkg/errors"
)

// PlanShape normalizes axis and returns the shape of the gathered output:
// dataShape[:axis] ++ indicesShape ++ dataShape[axis+1:], with the dtype of dataShape.
//
// It returns an *InvalidAxisError if axis is not in [-rank, rank-1]. The inputs are not modified.
func PlanShape(dataShape, indicesShape shapes.Shape, axis int) (normalizedAxis int, output shapes.Shape, err error) {
	rank := dataShape.Rank()
	if axis < -rank || axis >= rank {
		err = errors.WithStack(&InvalidAxisError{Axis: axis, Rank: rank})
		return
	}
	normalizedAxis = axis
	if normalizedAxis < 0 {
		normalizedAxis += rank
	}
	dims := make([]int, 0, rank-1+indicesShape.Rank())
	dims = append(dims, dataShape.Dimensions[:normalizedAxis]...)
	dims = append(dims, indicesShape.Dimensions...)
	dims = append(dims, dataShape.Dimensions[normalizedAxis+1:]...)
	output = shapes.Make(dataShape.DType, dims...)
	return
}
