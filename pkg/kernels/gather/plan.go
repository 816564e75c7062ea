// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gather

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gather/pkg/core/shapes"
)

// CopyPlan holds the stride arithmetic of one gather: the data is seen as OuterCount batches, each
// with AxisExtent blocks of BlockElems contiguous elements, and the output as OuterCount batches of
// IndexCount blocks.
type CopyPlan struct {
	// BlockElems is the product of the data dimensions after the axis.
	BlockElems int

	// BlockBytes = BlockElems * ElementSize.
	BlockBytes int

	// OuterCount is the product of the data dimensions before the axis.
	OuterCount int

	// IndexCount is the number of indices.
	IndexCount int

	// AxisExtent is the data dimension along the axis.
	AxisExtent int

	// ElementSize in bytes of one element of data.
	ElementSize int

	// SourceBatchStrideBytes = AxisExtent * BlockBytes.
	SourceBatchStrideBytes int

	// DestBatchStrideBytes = IndexCount * BlockBytes.
	DestBatchStrideBytes int

	// SourceBatchStride and DestBatchStride are the same strides in number of elements.
	SourceBatchStride, DestBatchStride int
}

// NewCopyPlan derives the CopyPlan for gathering numIndices blocks along the (normalized) axis of dataShape.
//
// It panics if axis is out of range: call PlanShape first.
func NewCopyPlan(dataShape shapes.Shape, axis, numIndices int) CopyPlan {
	elementSize := dataShape.DType.Size()
	blockElems := dataShape.SizeFromAxis(axis + 1)
	extent := dataShape.Dim(axis)
	return CopyPlan{
		BlockElems:             blockElems,
		BlockBytes:             blockElems * elementSize,
		OuterCount:             dataShape.SizeToAxis(axis),
		IndexCount:             numIndices,
		AxisExtent:             extent,
		ElementSize:            elementSize,
		SourceBatchStrideBytes: extent * blockElems * elementSize,
		DestBatchStrideBytes:   numIndices * blockElems * elementSize,
		SourceBatchStride:      extent * blockElems,
		DestBatchStride:        numIndices * blockElems,
	}
}

// Total returns the number of blocks to copy, OuterCount * IndexCount.
func (p CopyPlan) Total() int {
	return p.OuterCount * p.IndexCount
}

// IsEmpty returns whether there is nothing to copy.
func (p CopyPlan) IsEmpty() bool {
	return p.Total() == 0 || p.BlockElems == 0
}

// String implements fmt.Stringer.
func (p CopyPlan) String() string {
	return fmt.Sprintf("CopyPlan{batches=%d, indices=%d, axisExtent=%d, block=%d elements (%s)}",
		p.OuterCount, p.IndexCount, p.AxisExtent, p.BlockElems, humanize.IBytes(uint64(p.BlockBytes)))
}
