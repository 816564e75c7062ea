// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package numpy

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/gather/pkg/core/dtypes"
	"github.com/gomlx/gather/pkg/core/dtypes/bfloat16"
	"github.com/gomlx/gather/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func roundTrip(t *testing.T, tensor *tensors.Tensor) *tensors.Tensor {
	var buf bytes.Buffer
	require.NoError(t, ToNpyWriter(tensor, &buf))
	assert.Equal(t, npyMagic, buf.String()[:len(npyMagic)])
	headerLen := int(binary.LittleEndian.Uint16(buf.Bytes()[8:10]))
	assert.Zero(t, (10+headerLen)%headerAlignment, "data is not aligned")
	got, err := FromNpyReader(&buf)
	require.NoError(t, err)
	return got
}

func TestNpyRoundTrip(t *testing.T) {
	for _, tensor := range []*tensors.Tensor{
		tensors.FromValue([][]float32{{1, 2, 3}, {4, 5, 6}}),
		tensors.FromScalar(int64(-7)),
		tensors.FromValue([]bool{true, false, true}),
		tensors.FromValue([][][]uint16{{{1}, {2}}, {{3}, {4}}}),
		tensors.FromValue([]complex64{1 + 2i}),
		tensors.FromValue([]int32{}),
		tensors.FromFlatDataAndDimensions([]float16.Float16{float16.Fromfloat32(0.5), float16.Fromfloat32(-2)}, 2),
		tensors.FromValue([][]string{{"a", "héllo"}, {"", "日本語"}}),
		tensors.FromScalar("x"),
		tensors.FromValue([]string{}),
	} {
		got := roundTrip(t, tensor)
		assert.Truef(t, tensor.Equal(got), "want %s, got %s", tensor.GoStr(), got.GoStr())
	}
}

func TestStringsHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ToNpyWriter(tensors.FromValue([]string{"ab", "日本語"}), &buf))
	assert.Contains(t, buf.String(), "{'descr': '<U3', 'fortran_order': False, 'shape': (2,), }")
	// 2 elements of 3 characters of 4 bytes.
	headerLen := int(binary.LittleEndian.Uint16(buf.Bytes()[8:10]))
	assert.Equal(t, 2*3*4, buf.Len()-10-headerLen)
}

// npyBytes builds a .npy file with the given header dictionary and data.
func npyBytes(header string, data []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(npyMagic)
	buf.Write([]byte{1, 0})
	header += "\n"
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	buf.Write(data)
	return buf.Bytes()
}

func TestFortranOrder(t *testing.T) {
	// Column-major [2,3] matrix {{1, 2, 3}, {4, 5, 6}}.
	data := make([]byte, 0, 6*4)
	for _, v := range []int32{1, 4, 2, 5, 3, 6} {
		data = binary.LittleEndian.AppendUint32(data, uint32(v))
	}
	got, err := FromNpyReader(bytes.NewReader(npyBytes(
		"{'descr': '<i4', 'fortran_order': True, 'shape': (2, 3), }", data)))
	require.NoError(t, err)
	assert.Equal(t, [][]int32{{1, 2, 3}, {4, 5, 6}}, got.Value())

	// Unicode in column-major order, version 1.0 with "<U2".
	data = data[:0]
	for _, s := range []string{"a", "cc", "bb", "d"} {
		runes := []rune(s)
		for ii := range 2 {
			var r rune
			if ii < len(runes) {
				r = runes[ii]
			}
			data = binary.LittleEndian.AppendUint32(data, uint32(r))
		}
	}
	got, err = FromNpyReader(bytes.NewReader(npyBytes(
		"{'descr': '<U2', 'fortran_order': True, 'shape': (2, 2), }", data)))
	require.NoError(t, err)
	assert.Equal(t, dtypes.String, got.DType())
	assert.Equal(t, [][]string{{"a", "bb"}, {"cc", "d"}}, got.Value())
}

func TestErrors(t *testing.T) {
	_, err := FromNpyReader(bytes.NewReader([]byte("not a numpy file")))
	require.Error(t, err)

	_, err = FromNpyReader(bytes.NewReader(npyBytes("{'descr': '>f4', 'fortran_order': False, 'shape': (1,), }",
		[]byte{0, 0, 0, 0})))
	require.ErrorContains(t, err, "big-endian")

	_, err = FromNpyReader(bytes.NewReader(npyBytes("{'descr': '<V8', 'fortran_order': False, 'shape': (1,), }",
		make([]byte, 8))))
	require.ErrorContains(t, err, "unsupported NumPy dtype")

	// Truncated data.
	_, err = FromNpyReader(bytes.NewReader(npyBytes("{'descr': '<f8', 'fortran_order': False, 'shape': (2,), }",
		make([]byte, 8))))
	require.Error(t, err)

	var buf bytes.Buffer
	bf16 := tensors.FromFlatDataAndDimensions([]bfloat16.BFloat16{bfloat16.FromFloat32(1)}, 1)
	require.Error(t, ToNpyWriter(bf16, &buf))
}

func TestOversizedShapes(t *testing.T) {
	// The number of elements overflows int: unchecked it wraps to 0.
	_, err := FromNpyReader(bytes.NewReader(npyBytes(
		"{'descr': '<f4', 'fortran_order': False, 'shape': (4294967296, 4294967296), }", nil)))
	require.ErrorContains(t, err, "overflow")

	// The number of elements fits, but not the bytes.
	_, err = FromNpyReader(bytes.NewReader(npyBytes(
		"{'descr': '<U1000000', 'fortran_order': False, 'shape': (2147483648, 2147483648), }", nil)))
	require.ErrorContains(t, err, "overflow")

	// Addressable, but much larger than the file holding it.
	filePath := filepath.Join(t.TempDir(), "large.npy")
	require.NoError(t, os.WriteFile(filePath, npyBytes(
		"{'descr': '<f8', 'fortran_order': False, 'shape': (1000000, 1000000), }", make([]byte, 8)), 0o644))
	_, err = FromNpyFile(filePath)
	require.ErrorContains(t, err, "only has")

	npzPath := filepath.Join(t.TempDir(), "large.npz")
	f, err := os.Create(npzPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("x.npy")
	require.NoError(t, err)
	_, err = w.Write(npyBytes("{'descr': '<i8', 'fortran_order': False, 'shape': (1000000, 1000000), }", nil))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	_, err = FromNpzFile(npzPath)
	require.ErrorContains(t, err, "only has")
}

func TestNpyDTypes(t *testing.T) {
	for descr, want := range map[string]dtypes.DType{
		"|b1": dtypes.Bool, "?": dtypes.Bool, "|i1": dtypes.Int8, "<i2": dtypes.Int16, "<i8": dtypes.Int64,
		"|u1": dtypes.Uint8, "<u4": dtypes.Uint32, "<f2": dtypes.Float16, "=f4": dtypes.Float32,
		"<f8": dtypes.Float64, "<c8": dtypes.Complex64, "<c16": dtypes.Complex128, "<U7": dtypes.String,
	} {
		dtype, _, err := npyDTypeToDType(descr)
		require.NoErrorf(t, err, "descr %q", descr)
		assert.Equalf(t, want, dtype, "descr %q", descr)
	}
	_, itemSize, err := npyDTypeToDType("<U7")
	require.NoError(t, err)
	assert.Equal(t, 28, itemSize)
}

func TestNpzFile(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "tensors.npz")
	want := map[string]*tensors.Tensor{
		"data":    tensors.FromValue([][]float64{{1, 2}, {3, 4}}),
		"indices": tensors.FromValue([]int64{1, 0}),
		"names":   tensors.FromValue([]string{"x", "y"}),
	}
	require.NoError(t, ToNpzFile(want, filePath))
	got, err := FromNpzFile(filePath)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for name, tensor := range want {
		require.Containsf(t, got, name, "missing tensor %q", name)
		assert.Truef(t, tensor.Equal(got[name]), "tensor %q differs: %s", name, got[name])
	}

	npyPath := filepath.Join(t.TempDir(), "x.npy")
	require.NoError(t, ToNpyFile(want["names"], npyPath))
	names, err := FromNpyFile(npyPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, names.Value())
	_, err = FromNpyFile(filepath.Join(t.TempDir(), "missing.npy"))
	require.Error(t, err)
}
