// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"fmt"
	"reflect"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gather/pkg/core/dtypes"
	"github.com/gomlx/gather/pkg/core/shapes"
	"github.com/gomlx/gather/pkg/support/xslices"
	"github.com/pkg/errors"
)

// FromScalar creates a tensor with the given scalar.
// The `DType` is inferred from the value.
func FromScalar[T dtypes.Supported](value T) *Tensor {
	return FromScalarAndDimensions(value)
}

// FromScalarAndDimensions creates a tensor with the given dimensions, filled with the
// given scalar value replicated everywhere.
// The `DType` is inferred from the value.
func FromScalarAndDimensions[T dtypes.Supported](value T, dimensions ...int) *Tensor {
	if _, isInt := any(value).(int); isInt {
		return FromAnyValue(value).broadcastScalar(dimensions)
	}
	t := FromShape(shapes.Make(dtypes.FromGenericsType[T](), dimensions...))
	MutableFlatData(t, func(flat []T) {
		xslices.FillSlice(flat, value)
	})
	return t
}

// broadcastScalar replicates the value of the scalar tensor t to a new tensor with the given dimensions.
func (t *Tensor) broadcastScalar(dimensions []int) *Tensor {
	out := FromShape(shapes.Make(t.DType(), dimensions...))
	srcV := reflect.ValueOf(t.flat).Index(0)
	dstV := reflect.ValueOf(out.flat)
	for ii := range dstV.Len() {
		dstV.Index(ii).Set(srcV)
	}
	return out
}

// FromFlatDataAndDimensions creates a tensor with the given dimensions, filled with the flattened values given in `data`.
// The data is copied to the Tensor.
// The `DType` is inferred from the `data` type.
//
// It panics if the size of data is wrong for the shape.
func FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int) *Tensor {
	dtype := dtypes.FromGenericsType[T]()
	shape := shapes.Make(dtype, dimensions...)
	if len(data) != shape.Size() {
		exceptions.Panicf("FromFlatDataAndDimensions(%s): data size is %d, but dimensions size is %d",
			shape, len(data), shape.Size())
	}
	t := FromShape(shape)
	if _, isInt := any(data).([]int); isInt {
		// Go's int is stored as Int32 or Int64 depending on the platform: convert element by element.
		dstV := reflect.ValueOf(t.flat)
		for ii, v := range data {
			dstV.Index(ii).SetInt(int64(any(v).(int)))
		}
		return t
	}
	MutableFlatData(t, func(flat []T) {
		copy(flat, data)
	})
	return t
}

// FromValue returns a tensor constructed from the given multi-dimension slice (or scalar).
// If the rank of the `value` is larger than 1, the shape of all sub-slices must be the same.
//
// It panics if the shape is not regular.
//
// Notice that FromFlatDataAndDimensions is much faster if speed here is a concern.
func FromValue[S MultiDimensionSlice](value S) *Tensor {
	return FromAnyValue(value)
}

// FromAnyValue is a non-generic version of FromValue.
// If the input is a tensor already, it is simply returned.
//
// It panics with an error if the value type is unsupported or the shape is not regular.
func FromAnyValue(value any) *Tensor {
	if valueT, ok := value.(*Tensor); ok {
		return valueT
	}
	shape, err := shapeForValue(value)
	if err != nil {
		panic(errors.Wrapf(err, "cannot create shape from %T", value))
	}
	t := FromShape(shape)
	flatV := reflect.ValueOf(t.flat)
	valueV := reflect.ValueOf(value)
	if shape.IsScalar() {
		setConverted(flatV.Index(0), valueV)
		return t
	}
	copySlicesRecursively(flatV, valueV, t.LayoutStrides())
	return t
}

// setConverted sets dst to src, converting Go's int to the platform's Int32/Int64 storage.
func setConverted(dst, src reflect.Value) {
	if src.Kind() == reflect.Int {
		dst.SetInt(src.Int())
		return
	}
	dst.Set(src)
}

// copySlicesRecursively copy values on a multi-dimension slice to a flat data slice
// assuming the strides for each dimension.
func copySlicesRecursively(data reflect.Value, mdSlice reflect.Value, strides []int) {
	if len(strides) == 1 {
		if mdSlice.Type().Elem().Kind() == reflect.Int {
			for ii := range mdSlice.Len() {
				data.Index(ii).SetInt(mdSlice.Index(ii).Int())
			}
			return
		}
		reflect.Copy(data, mdSlice)
		return
	}
	for ii := range mdSlice.Len() {
		start := ii * strides[0]
		end := (ii + 1) * strides[0]
		copySlicesRecursively(data.Slice(start, end), mdSlice.Index(ii), strides[1:])
	}
}

func shapeForValue(v any) (shapes.Shape, error) {
	var shape shapes.Shape
	err := shapeForValueRecursive(&shape, reflect.ValueOf(v), reflect.TypeOf(v))
	return shape, err
}

func shapeForValueRecursive(shape *shapes.Shape, v reflect.Value, t reflect.Type) error {
	switch t.Kind() {
	case reflect.Slice:
		t = t.Elem()
		shape.Dimensions = append(shape.Dimensions, v.Len())
		shapePrefix := shape.Clone()
		if v.Len() == 0 {
			if t.Kind() == reflect.Slice {
				return errors.Errorf("empty slice of slices %s cannot define a shape -- use shapes.Make and FromShape", v.Type())
			}
			shape.DType = dtypes.FromGoType(t)
			if shape.DType == dtypes.InvalidDType {
				return errors.Errorf("cannot convert type %s to a tensor dtype", t)
			}
			return nil
		}
		// The first element is the reference.
		if err := shapeForValueRecursive(shape, v.Index(0), t); err != nil {
			return err
		}
		for ii := 1; ii < v.Len(); ii++ {
			shapeTest := shapePrefix.Clone()
			if err := shapeForValueRecursive(&shapeTest, v.Index(ii), t); err != nil {
				return err
			}
			if !shape.Equal(shapeTest) {
				return errors.Errorf("sub-slices have irregular shapes, found shapes %q, and %q", shape, shapeTest)
			}
		}

	case reflect.Pointer:
		return errors.Errorf("cannot convert Pointer (%s) to a concrete value for tensors", t)

	default:
		shape.DType = dtypes.FromGoType(t)
		if shape.DType == dtypes.InvalidDType {
			return errors.Errorf("cannot convert type %s to a tensor dtype", t)
		}
	}
	return nil
}

// Value returns a multidimensional slice (or a scalar) with a copy of the tensor's values.
// E.g: a tensor of shape (Float32)[2 3] returns a [][]float32 of 2 rows of 3 values.
func (t *Tensor) Value() any {
	t.AssertValid()
	flatV := reflect.ValueOf(t.flat)
	if t.IsScalar() {
		return flatV.Index(0).Interface()
	}
	flatCopy := reflect.MakeSlice(flatV.Type(), flatV.Len(), flatV.Len())
	reflect.Copy(flatCopy, flatV)
	return convertDataToSlices(flatCopy, t.shape.Dimensions...).Interface()
}

// convertDataToSlices takes data as a flat slice and creates a multidimensional slice with the given dimensions that
// points to the given data.
func convertDataToSlices(dataV reflect.Value, dimensions ...int) reflect.Value {
	if len(dimensions) <= 1 {
		return dataV
	}
	resultT := dataV.Type().Elem()
	for range dimensions {
		resultT = reflect.SliceOf(resultT)
	}
	strides := shapes.Make(dtypes.Bool, dimensions...).Strides()
	return createSlicesRecursively(resultT, dataV, dimensions, strides)
}

func createSlicesRecursively(resultT reflect.Type, data reflect.Value, dimensions []int, strides []int) reflect.Value {
	if len(strides) == 1 {
		return data
	}
	numElements := dimensions[0]
	slice := reflect.MakeSlice(resultT, numElements, numElements)
	for ii := 0; ii < numElements; ii++ {
		subData := data.Slice(ii*strides[0], (ii+1)*strides[0])
		slice.Index(ii).Set(createSlicesRecursively(resultT.Elem(), subData, dimensions[1:], strides[1:]))
	}
	return slice
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	t.AssertValid()
	out := FromShape(t.shape)
	reflect.Copy(reflect.ValueOf(out.flat), reflect.ValueOf(t.flat))
	return out
}

// Equal checks weather t == otherTensor: same shape and same values.
// If they are the same pointer, they are considered equal.
//
// Slow implementation: fine for small tensors.
func (t *Tensor) Equal(otherTensor *Tensor) bool {
	t.AssertValid()
	otherTensor.AssertValid()
	if t == otherTensor {
		return true
	}
	if !t.shape.Equal(otherTensor.shape) {
		return false
	}
	t0V := reflect.ValueOf(t.flat)
	t1V := reflect.ValueOf(otherTensor.flat)
	for ii := range t0V.Len() {
		if !t0V.Index(ii).Equal(t1V.Index(ii)) {
			return false
		}
	}
	return true
}

// GoStr converts to string, using a Go-syntax representation.
func (t *Tensor) GoStr() string {
	t.AssertValid()
	if t.shape.IsZeroSize() {
		return t.shape.String()
	}
	if t.IsScalar() {
		return fmt.Sprintf("%s(%#v)", t.shape.DType, t.Value())
	}
	return fmt.Sprintf("%s: %#v", t.shape, t.Value())
}
