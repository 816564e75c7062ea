// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implement a `Tensor`, a representation of a multidimensional array held in host memory.
//
// Tensors are multidimensional arrays (from scalar with 0 dimensions, to arbitrarily large dimensions), defined
// by their shape (a data type and its axes' dimensions) and their actual content, stored as one contiguous
// flat Go slice of the DType's Go type, in row-major order.
//
// There are various ways to construct a Tensor:
//
//   - FromShape(shape shapes.Shape): creates a tensor with the given shape, and zero values. This is the
//     allocator used for the output of kernels.
//
//   - FromScalarAndDimensions[T dtypes.Supported](value T, dimensions ...int): creates a Tensor with the
//     given dimensions, filled with the scalar value given.
//
//   - FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int): creates a Tensor with the
//     given dimensions and set the flattened values with the given data. Example:
//
//     t := FromFlatDataAndDimensions([]int8{1, 2, 3, 4}, 2, 2}) // Tensor with [[1,2], [3,4]]
//
//   - FromValue[S MultiDimensionSlice](value S): Generic conversion works with the scalar supported `DType`s
//     as well as with any arbitrary multidimensional slice of them. Slices of rank > 1 must be regular, that is
//     all the sub-slices must have the same shape. Example:
//
//     t := FromValue([][]float{{1,2}, {3, 5}, {7, 11}})`
//
// Tensors of dtypes.String hold Go strings: they are a managed element type and their bytes view
// is not available (see Tensor.ConstBytes).
//
// A Tensor is not safe for concurrent mutation: concurrent readers are fine, and concurrent writers must
// write to disjoint parts of the flat data.
package tensors

import (
	"reflect"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gather/pkg/core/dtypes"
	"github.com/gomlx/gather/pkg/core/shapes"
	"github.com/pkg/errors"
)

// Tensor represents a multidimensional array, defined by its shape and its content stored
// as a flat (1D) slice of values of the Go type of its DType.
type Tensor struct {
	shape shapes.Shape

	// flat is always a slice of shape.DType.GoType(), with shape.Size() elements.
	flat any
}

// MultiDimensionSlice lists the Go types that can be converted to a Tensor by FromValue.
type MultiDimensionSlice interface {
	bool | float32 | float64 | int | int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | complex64 | complex128 | string |
		[]bool | []float32 | []float64 | []int | []int8 | []int16 | []int32 | []int64 | []uint8 | []uint16 | []uint32 | []uint64 | []complex64 | []complex128 | []string |
		[][]bool | [][]float32 | [][]float64 | [][]int | [][]int8 | [][]int16 | [][]int32 | [][]int64 | [][]uint8 | [][]uint16 | [][]uint32 | [][]uint64 | [][]complex64 | [][]complex128 | [][]string |
		[][][]bool | [][][]float32 | [][][]float64 | [][][]int | [][][]int8 | [][][]int16 | [][][]int32 | [][][]int64 | [][][]uint8 | [][][]uint16 | [][][]uint32 | [][][]uint64 | [][][]complex64 | [][][]complex128 | [][][]string
}

// FromShape returns a Tensor with the given shape, with the data initialized with zeros.
// It panics if the shape is not valid.
func FromShape(shape shapes.Shape) *Tensor {
	if !shape.Ok() || !shape.DType.IsValid() {
		exceptions.Panicf("tensors.FromShape(%s): invalid shape", shape)
	}
	size := shape.Size()
	return &Tensor{
		shape: shape.Clone(),
		flat:  reflect.MakeSlice(reflect.SliceOf(shape.DType.GoType()), size, size).Interface(),
	}
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType of the tensor's shape.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Rank of the tensor's shape.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// Size returns the number of elements in the tensor.
func (t *Tensor) Size() int { return t.shape.Size() }

// IsScalar returns whether the tensor represents a scalar value.
func (t *Tensor) IsScalar() bool { return t.shape.IsScalar() }

// Memory returns the number of bytes used by the flat data. For managed dtypes it only accounts the headers.
func (t *Tensor) Memory() uintptr { return t.shape.Memory() }

// CheckValid returns an error if the tensor is nil or has no data.
func (t *Tensor) CheckValid() error {
	if t == nil {
		return errors.New("Tensor is nil")
	}
	if t.flat == nil || !t.shape.Ok() {
		return errors.Errorf("Tensor with shape %s has no data", t.shape)
	}
	return nil
}

// AssertValid panics if the tensor is nil or has no data.
func (t *Tensor) AssertValid() {
	if err := t.CheckValid(); err != nil {
		panic(err)
	}
}

// ConstFlatData calls accessFn with the flat data of the tensor, a slice of the Go type of its DType.
// The slice is owned by the Tensor and should not be changed.
//
// Even scalar values have a flattened data representation of one element.
func (t *Tensor) ConstFlatData(accessFn func(flat any)) {
	t.AssertValid()
	accessFn(t.flat)
}

// MutableFlatData calls accessFn with the flat data of the tensor, whose contents can be changed.
func (t *Tensor) MutableFlatData(accessFn func(flat any)) {
	t.AssertValid()
	accessFn(t.flat)
}

// ConstFlatData calls accessFn with the flat data as a slice of T. It is the generics version of
// Tensor.ConstFlatData.
//
// It panics if T doesn't match the tensor's DType.
func ConstFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) {
	t.ConstFlatData(func(flat any) {
		accessFn(flatAs[T](t, flat))
	})
}

// MutableFlatData calls accessFn with the flat data as a mutable slice of T.
//
// It panics if T doesn't match the tensor's DType.
func MutableFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) {
	t.MutableFlatData(func(flat any) {
		accessFn(flatAs[T](t, flat))
	})
}

// CopyFlatData returns a copy of the flat data of the tensor as a slice of T.
func CopyFlatData[T dtypes.Supported](t *Tensor) []T {
	var result []T
	ConstFlatData(t, func(flat []T) {
		result = make([]T, len(flat))
		copy(result, flat)
	})
	return result
}

// ToScalar returns the scalar value of a tensor with one element.
func ToScalar[T dtypes.Supported](t *Tensor) T {
	if t.Size() != 1 {
		exceptions.Panicf("tensors.ToScalar(%s): tensor has %d elements", t.shape, t.Size())
	}
	var v T
	ConstFlatData(t, func(flat []T) { v = flat[0] })
	return v
}

func flatAs[T dtypes.Supported](t *Tensor, flat any) []T {
	typed, ok := flat.([]T)
	if !ok {
		var v T
		exceptions.Panicf("tensor of shape %s accessed as %T -- expected dtype %s", t.shape, v, dtypes.FromGenericsType[T]())
	}
	return typed
}

// LayoutStrides return the strides for each axis, in number of elements. See shapes.Shape.Strides.
func (t *Tensor) LayoutStrides() []int {
	return t.shape.Strides()
}
