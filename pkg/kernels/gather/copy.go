// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gather

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gather/internal/workerspool"
	"github.com/gomlx/gather/pkg/core/dtypes"
	"github.com/gomlx/gather/pkg/core/tensors"
)

// Scheduler runs fn over disjoint sub-ranges [start, end) covering [0, total) and returns once they
// have all completed. costPerUnit is the estimated cost of one unit of work: for gather it is the
// size of a block in bytes.
//
// *workerspool.Pool is the default implementation, and Sequential runs everything inline.
type Scheduler interface {
	ParallelFor(total int, costPerUnit float64, fn func(start, end int))
}

var _ Scheduler = (*workerspool.Pool)(nil)

type sequentialScheduler struct{}

// Sequential is a Scheduler that runs the whole range inline, in the calling goroutine.
var Sequential Scheduler = sequentialScheduler{}

// ParallelFor implements Scheduler.
func (sequentialScheduler) ParallelFor(total int, _ float64, fn func(start, end int)) {
	if total > 0 {
		fn(0, total)
	}
}

// blockCopier copies the block at axis position idx of a data batch to position i of the
// corresponding output batch.
type blockCopier interface {
	copyBlock(batch, i, idx int)
}

// rawCopier copies bit-copyable blocks as bytes.
type rawCopier struct {
	src, dst                       []byte
	blockBytes                     int
	srcBatchStride, dstBatchStride int
}

func (c *rawCopier) copyBlock(batch, i, idx int) {
	srcOffset := batch*c.srcBatchStride + idx*c.blockBytes
	dstOffset := batch*c.dstBatchStride + i*c.blockBytes
	copy(c.dst[dstOffset:dstOffset+c.blockBytes], c.src[srcOffset:srcOffset+c.blockBytes])
}

// valueCopier copies managed elements one at a time by assignment.
type valueCopier[T any] struct {
	src, dst                       []T
	blockElems                     int
	srcBatchStride, dstBatchStride int
}

func (c *valueCopier[T]) copyBlock(batch, i, idx int) {
	srcOffset := batch*c.srcBatchStride + idx*c.blockElems
	dstOffset := batch*c.dstBatchStride + i*c.blockElems
	for e := range c.blockElems {
		c.dst[dstOffset+e] = c.src[srcOffset+e]
	}
}

// copyBlocks runs the copy of all plan.Total() blocks using the scheduler.
// indices must have been validated.
func copyBlocks[I int32 | int64](scheduler Scheduler, plan CopyPlan, indices []I, c blockCopier) {
	n, extent := plan.IndexCount, plan.AxisExtent
	scheduler.ParallelFor(plan.Total(), float64(plan.BlockBytes), func(start, end int) {
		for p := start; p < end; p++ {
			batch, i := p/n, p%n
			c.copyBlock(batch, i, NormalizeIndex(int64(indices[i]), extent))
		}
	})
}

// runCopy selects the copier from the dtype of data and the loop from the type of acc, and copies
// all blocks from data to output.
//
// Validation must be complete: nothing here fails other than by bugs.
func runCopy(scheduler Scheduler, plan CopyPlan, acc IndexAccessor, data, output *tensors.Tensor) {
	if plan.IsEmpty() {
		return
	}
	run := func(c blockCopier) {
		switch indices := acc.(type) {
		case Int32Indices:
			copyBlocks(scheduler, plan, []int32(indices), c)
		case Int64Indices:
			copyBlocks(scheduler, plan, []int64(indices), c)
		default:
			exceptions.Panicf("gather: unknown IndexAccessor type %T", acc)
		}
	}

	dtype := data.DType()
	if dtype.IsManaged() {
		if dtype != dtypes.String {
			exceptions.Panicf("gather: managed dtype %s not supported", dtype)
		}
		tensors.ConstFlatData(data, func(src []string) {
			tensors.MutableFlatData(output, func(dst []string) {
				run(&valueCopier[string]{
					src:            src,
					dst:            dst,
					blockElems:     plan.BlockElems,
					srcBatchStride: plan.SourceBatchStride,
					dstBatchStride: plan.DestBatchStride,
				})
			})
		})
		return
	}

	var outputErr error
	err := data.ConstBytes(func(src []byte) {
		outputErr = output.MutableBytes(func(dst []byte) {
			run(&rawCopier{
				src:            src,
				dst:            dst,
				blockBytes:     plan.BlockBytes,
				srcBatchStride: plan.SourceBatchStrideBytes,
				dstBatchStride: plan.DestBatchStrideBytes,
			})
		})
	})
	if err == nil {
		err = outputErr
	}
	if err != nil {
		exceptions.Panicf("gather: failed to access raw bytes of %s: %v", dtype, err)
	}
}
