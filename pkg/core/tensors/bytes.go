// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"reflect"
	"unsafe"

	"github.com/pkg/errors"
)

// flatBytes returns a bytes view over the memory of the flat slice.
// It must only be used for bit-copyable dtypes.
func flatBytes(flat any) []byte {
	flatV := reflect.ValueOf(flat)
	if flatV.Len() == 0 {
		return []byte{}
	}
	sizeBytes := uintptr(flatV.Len()) * flatV.Type().Elem().Size()
	return unsafe.Slice((*byte)(flatV.UnsafePointer()), sizeBytes)
}

// ConstBytes calls accessFn with the data as a bytes slice.
// Even scalar values have a bytes data representation of one element.
//
// This provides accessFn with the actual Tensor data (not a copy), and it should not be changed.
//
// It returns an error for managed dtypes (dtypes.String), whose memory holds references.
func (t *Tensor) ConstBytes(accessFn func(data []byte)) error {
	if err := t.CheckValid(); err != nil {
		return err
	}
	if t.shape.DType.IsManaged() {
		return errors.Errorf("ConstBytes not available for tensors of managed dtype %s", t.shape.DType)
	}
	accessFn(flatBytes(t.flat))
	return nil
}

// MutableBytes gives mutable access to the values of the tensor as bytes.
// It's similar to MutableFlatData but provides a bytes view to the same data.
//
// It returns an error for managed dtypes (dtypes.String), whose memory holds references.
func (t *Tensor) MutableBytes(accessFn func(data []byte)) error {
	if err := t.CheckValid(); err != nil {
		return err
	}
	if t.shape.DType.IsManaged() {
		return errors.Errorf("MutableBytes not available for tensors of managed dtype %s", t.shape.DType)
	}
	accessFn(flatBytes(t.flat))
	return nil
}
