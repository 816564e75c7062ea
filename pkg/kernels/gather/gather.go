// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package gather implements the Gather kernel on CPU: it selects slices of a data tensor along one
// axis, at the positions given by an integer indices tensor.
//
// The output shape is data[:axis] ++ indices ++ data[axis+1:], and
//
//	output[..., i, ...] = data[..., normalize(indices[i]), ...]
//
// where negative indices count from the end of the axis. Example:
//
//	data := tensors.FromValue([][]float32{{1, 2, 3}, {4, 5, 6}})
//	out, err := gather.Gather(data, tensors.FromValue([]int32{2, 0}), 1)
//	// out = [][]float32{{3, 1}, {6, 4}}
//
// All indices are validated before anything is written, so an error never leaves a partially
// filled output. The copy is split in blocks (the contiguous slices after the axis) distributed
// over a Scheduler, by default a workerspool.Pool configured by ParseConfig.
//
// Bit-copyable dtypes are copied as raw bytes, while dtypes.String elements are assigned one by one.
package gather

import (
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gather/internal/workerspool"
	"github.com/gomlx/gather/pkg/core/shapes"
	"github.com/gomlx/gather/pkg/core/tensors"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultAxis is the axis gathered over when none is given.
const DefaultAxis = 0

// Kernel executes gathers with a fixed Scheduler. It is safe for concurrent use.
type Kernel struct {
	config    Config
	scheduler Scheduler
}

// New creates a Kernel from a configuration string, see ParseConfig for the format.
func New(config string) (*Kernel, error) {
	c, err := ParseConfig(config)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(c), nil
}

// MustNew is like New, but panics on error.
func MustNew(config string) *Kernel {
	return must.M1(New(config))
}

// NewFromConfig creates a Kernel with a workerspool.Pool scheduler (or Sequential) configured by c.
func NewFromConfig(c Config) *Kernel {
	k := &Kernel{config: c}
	if c.Sequential {
		k.scheduler = Sequential
	} else {
		k.scheduler = workerspool.New().
			SetMaxParallelism(c.Parallelism).
			SetTargetCostPerTask(float64(c.Grain))
	}
	klog.V(1).Infof("gather: new kernel with config %q", c)
	return k
}

// NewWithScheduler creates a Kernel that uses the given scheduler for the copy phase.
// Its Config is DefaultConfig(), which doesn't affect the scheduler.
func NewWithScheduler(scheduler Scheduler) *Kernel {
	return &Kernel{config: DefaultConfig(), scheduler: scheduler}
}

var defaultKernel = sync.OnceValue(func() *Kernel {
	config := os.Getenv(ConfigEnvVar)
	k, err := New(config)
	if err != nil {
		panic(errors.WithMessagef(err, "invalid $%s=%q", ConfigEnvVar, config))
	}
	return k
})

// Default returns the Kernel configured by the environment variable $GOMLX_GATHER (see ParseConfig),
// created on first use. It panics if the configuration is invalid.
func Default() *Kernel {
	return defaultKernel()
}

// Gather is a shortcut for Default().Compute(data, indices, axis).
func Gather(data, indices *tensors.Tensor, axis int) (*tensors.Tensor, error) {
	return Default().Compute(data, indices, axis)
}

// Config returns the configuration of the Kernel.
func (k *Kernel) Config() Config { return k.config }

// Scheduler used by the Kernel.
func (k *Kernel) Scheduler() Scheduler { return k.scheduler }

// String implements fmt.Stringer.
func (k *Kernel) String() string { return "gather.Kernel(" + k.config.String() + ")" }

// request is a validated gather, ready to be copied.
type request struct {
	data *tensors.Tensor
	acc  IndexAccessor
	plan CopyPlan
}

// prepare plans and validates a gather: nothing is written.
func (k *Kernel) prepare(data, indices *tensors.Tensor, axis int) (r request, outputShape shapes.Shape, err error) {
	if err = data.CheckValid(); err != nil {
		err = errors.WithMessage(err, "gather data")
		return
	}
	if err = indices.CheckValid(); err != nil {
		err = errors.WithMessage(err, "gather indices")
		return
	}
	axis, outputShape, err = PlanShape(data.Shape(), indices.Shape(), axis)
	if err != nil {
		return
	}
	r.data = data
	r.acc, err = NewIndexAccessor(indices)
	if err != nil {
		return
	}
	r.plan = NewCopyPlan(data.Shape(), axis, r.acc.Len())
	if err = ValidateIndices(r.acc, r.plan.AxisExtent); err != nil {
		return
	}
	if klog.V(2).Enabled() {
		klog.Infof("gather: data %s, indices %s, axis %d: %d blocks of %s",
			data.Shape(), indices.Shape(), axis, r.plan.Total(), humanize.IBytes(uint64(r.plan.BlockBytes)))
	}
	return
}

// Compute gathers data along axis at the given indices, into a newly allocated tensor.
//
// Errors (*InvalidAxisError, *OutOfBoundsError, *UnsupportedIndexTypeError) are wrapped with a
// stack trace, use errors.As to inspect them.
func (k *Kernel) Compute(data, indices *tensors.Tensor, axis int) (*tensors.Tensor, error) {
	r, outputShape, err := k.prepare(data, indices, axis)
	if err != nil {
		return nil, err
	}
	output := tensors.FromShape(outputShape)
	runCopy(k.scheduler, r.plan, r.acc, r.data, output)
	return output, nil
}

// ComputeInto is like Compute, but writes the result into output, which must have exactly the
// gathered shape and dtype (otherwise a *ShapeMismatchError is returned) and must not be one of
// the inputs.
//
// On error output is left untouched.
func (k *Kernel) ComputeInto(data, indices *tensors.Tensor, axis int, output *tensors.Tensor) error {
	r, outputShape, err := k.prepare(data, indices, axis)
	if err != nil {
		return err
	}
	if err = output.CheckValid(); err != nil {
		return errors.WithMessage(err, "gather output")
	}
	if output == data || output == indices {
		return errors.New("gather output must not be one of the inputs")
	}
	if !output.Shape().Equal(outputShape) {
		return errors.WithStack(&ShapeMismatchError{Want: outputShape, Got: output.Shape()})
	}
	runCopy(k.scheduler, r.plan, r.acc, r.data, output)
	return nil
}
