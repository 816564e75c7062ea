// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package numpy allows one to read/write tensors to Python's NumPy npy and npz file formats.
//
// Numeric and boolean dtypes are stored little-endian. Tensors of dtypes.String are stored as
// NumPy's fixed width unicode arrays ('<U<n>', UTF-32 code points padded with zeros), which is
// what `numpy.array(["a", "bc"])` produces.
package numpy

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gomlx/gather/pkg/core/dtypes"
	"github.com/gomlx/gather/pkg/core/shapes"
	"github.com/gomlx/gather/pkg/core/tensors"
	"github.com/gomlx/gather/pkg/support/xslices"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const npyMagic = "\x93NUMPY"

// headerAlignment is the alignment of the data that follows the header.
const headerAlignment = 64

// utf32Size is the number of bytes per character in NumPy unicode arrays.
const utf32Size = 4

// FromNpyFile reads a .npy file and returns a tensors.Tensor.
func FromNpyFile(filePath string) (*tensors.Tensor, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open .npy file %q", filePath)
	}
	defer func() { _ = file.Close() }()
	info, err := file.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat .npy file %q", filePath)
	}
	t, err := fromNpyReader(file, info.Size())
	if err != nil {
		return nil, errors.WithMessagef(err, "reading %q", filePath)
	}
	return t, nil
}

// npyHeader holds the parsed header dictionary of a .npy file.
type npyHeader struct {
	descr        string
	shape        []int
	fortranOrder bool
}

// FromNpyReader reads a .npy file from an io.Reader and returns a tensors.Tensor.
func FromNpyReader(r io.Reader) (*tensors.Tensor, error) {
	return fromNpyReader(r, -1)
}

// fromNpyReader implements FromNpyReader. If inputSize >= 0, it is the total size of the .npy
// content, and headers declaring more data than that are rejected before anything is allocated.
func fromNpyReader(r io.Reader, inputSize int64) (*tensors.Tensor, error) {
	headerStr, err := readNpyHeader(r)
	if err != nil {
		return nil, err
	}
	header, err := parseNpyHeader(headerStr)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to parse .npy header")
	}
	dtype, itemSize, err := npyDTypeToDType(header.descr)
	if err != nil {
		return nil, err
	}
	if err = shapes.CheckDimensions(dtype, header.shape...); err != nil {
		return nil, errors.WithMessage(err, "invalid .npy shape")
	}
	dataSize, err := npyDataSize(header.shape, itemSize)
	if err != nil {
		return nil, err
	}
	if inputSize >= 0 && dataSize > inputSize {
		return nil, errors.Errorf("header declares %d bytes of data for shape %v, but the input only has %d bytes",
			dataSize, header.shape, inputSize)
	}
	shape := shapes.Make(dtype, header.shape...)
	tensor := tensors.FromShape(shape)
	needsReordering := header.fortranOrder && shape.Rank() > 1

	if !dtype.IsManaged() && !needsReordering {
		// Row-major raw data can be read directly into the tensor.
		var readErr error
		err = tensor.MutableBytes(func(data []byte) {
			if _, readErr = io.ReadFull(r, data); readErr != nil {
				readErr = errors.Wrapf(readErr, "failed to read tensor data (expected %d bytes)", len(data))
			}
		})
		if err == nil {
			err = readErr
		}
		if err != nil {
			return nil, err
		}
		return tensor, nil
	}

	raw := make([]byte, shape.Size()*itemSize)
	if _, err = io.ReadFull(r, raw); err != nil {
		return nil, errors.Wrapf(err, "failed to read tensor data (expected %d bytes)", len(raw))
	}
	if needsReordering {
		raw = fortranToCOrder(shape, itemSize, raw)
	}
	if dtype == dtypes.String {
		tensors.MutableFlatData(tensor, func(flat []string) {
			for ii := range flat {
				flat[ii] = decodeUTF32(raw[ii*itemSize : (ii+1)*itemSize])
			}
		})
		return tensor, nil
	}
	err = tensor.MutableBytes(func(data []byte) { copy(data, raw) })
	if err != nil {
		return nil, err
	}
	return tensor, nil
}

// readNpyHeader reads the magic string, version and header length, and returns the header dictionary string.
func readNpyHeader(r io.Reader) (string, error) {
	preamble := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(r, preamble); err != nil {
		return "", errors.Wrapf(err, "failed to read .npy magic string and version")
	}
	if string(preamble[:len(npyMagic)]) != npyMagic {
		return "", errors.Errorf("invalid .npy file format: magic string mismatch")
	}
	major, minor := preamble[len(npyMagic)], preamble[len(npyMagic)+1]

	var headerLen int
	switch {
	case major == 1:
		lenBytes := make([]byte, 2)
		if _, err := io.ReadFull(r, lenBytes); err != nil {
			return "", errors.Wrapf(err, "failed to read header length (v1.0)")
		}
		headerLen = int(binary.LittleEndian.Uint16(lenBytes))
	case major == 2 || major == 3:
		lenBytes := make([]byte, 4)
		if _, err := io.ReadFull(r, lenBytes); err != nil {
			return "", errors.Wrapf(err, "failed to read header length (v%d.%d)", major, minor)
		}
		headerLen = int(binary.LittleEndian.Uint32(lenBytes))
	default:
		return "", errors.Errorf("unsupported .npy version: %d.%d", major, minor)
	}

	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return "", errors.Wrapf(err, "failed to read header")
	}
	return string(headerBytes), nil
}

var (
	reDescr   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	reFortran = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	reShape   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// parseNpyHeader parses the header dictionary, e.g.:
// "{'descr': '<f4', 'fortran_order': False, 'shape': (1, 2, 3), }".
//
// It only handles the simple (non-structured) dtypes.
func parseNpyHeader(header string) (h npyHeader, err error) {
	m := reDescr.FindStringSubmatch(header)
	if len(m) < 2 {
		err = errors.Errorf("could not find 'descr' in header: %q", header)
		return
	}
	h.descr = m[1]

	m = reFortran.FindStringSubmatch(header)
	if len(m) < 2 {
		err = errors.Errorf("could not find 'fortran_order' in header: %q", header)
		return
	}
	h.fortranOrder = m[1] == "True"

	m = reShape.FindStringSubmatch(header)
	if len(m) < 2 {
		err = errors.Errorf("could not find 'shape' in header: %q", header)
		return
	}
	h.shape = []int{}
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			// Scalar "()" or trailing comma "(10,)".
			continue
		}
		dim, convErr := strconv.Atoi(part)
		if convErr != nil || dim < 0 {
			err = errors.Errorf("invalid shape value %q in header %q", part, header)
			return
		}
		h.shape = append(h.shape, dim)
	}
	if checkErr := shapes.CheckDimensions(dtypes.InvalidDType, h.shape...); checkErr != nil {
		err = errors.WithMessagef(checkErr, "invalid shape in header %q", header)
	}
	return
}

// npyDataSize returns the number of bytes of data in the file for the given shape, or an error
// if it overflows.
func npyDataSize(shape []int, itemSize int) (int64, error) {
	if slices.Contains(shape, 0) {
		return 0, nil
	}
	size := int64(itemSize)
	for _, dim := range shape {
		if size > math.MaxInt/int64(dim) {
			return 0, errors.Errorf("data size of shape %v with %d bytes per element overflows", shape, itemSize)
		}
		size *= int64(dim)
	}
	return size, nil
}

var reNpyDType = regexp.MustCompile(`^([<>|=]?)([a-zA-Z?])(\d*)$`)

// npyDTypeToDType converts a NumPy dtype string to a dtypes.DType and the number of bytes per
// element in the file.
func npyDTypeToDType(npyType string) (dtype dtypes.DType, itemSize int, err error) {
	m := reNpyDType.FindStringSubmatch(npyType)
	if m == nil {
		err = errors.Errorf("unsupported NumPy dtype %q", npyType)
		return
	}
	byteOrder, kind := m[1], m[2]
	if m[3] != "" {
		itemSize, _ = strconv.Atoi(m[3])
	}
	switch kind {
	case "?", "b":
		if itemSize == 0 || itemSize == 1 {
			dtype, itemSize = dtypes.Bool, 1
		}
	case "i":
		dtype = map[int]dtypes.DType{1: dtypes.Int8, 2: dtypes.Int16, 4: dtypes.Int32, 8: dtypes.Int64}[itemSize]
	case "u":
		dtype = map[int]dtypes.DType{1: dtypes.Uint8, 2: dtypes.Uint16, 4: dtypes.Uint32, 8: dtypes.Uint64}[itemSize]
	case "f":
		dtype = map[int]dtypes.DType{2: dtypes.Float16, 4: dtypes.Float32, 8: dtypes.Float64}[itemSize]
	case "c":
		dtype = map[int]dtypes.DType{8: dtypes.Complex64, 16: dtypes.Complex128}[itemSize]
	case "U":
		// The size is given in number of characters.
		if itemSize > 0 {
			dtype, itemSize = dtypes.String, itemSize*utf32Size
		}
	}
	if dtype == dtypes.InvalidDType {
		err = errors.Errorf("unsupported NumPy dtype %q", npyType)
		return
	}
	if byteOrder == ">" && itemSize > 1 {
		err = errors.Errorf("big-endian .npy dtype %q is not supported", npyType)
	}
	return
}

// dtypeToNpy converts a dtypes.DType to a NumPy dtype string.
// maxChars is only used for dtypes.String.
func dtypeToNpy(dtype dtypes.DType, maxChars int) (string, error) {
	switch dtype {
	case dtypes.Bool:
		return "|b1", nil
	case dtypes.Int8:
		return "|i1", nil
	case dtypes.Uint8:
		return "|u1", nil
	case dtypes.Int16, dtypes.Int32, dtypes.Int64:
		return fmt.Sprintf("<i%d", dtype.Size()), nil
	case dtypes.Uint16, dtypes.Uint32, dtypes.Uint64:
		return fmt.Sprintf("<u%d", dtype.Size()), nil
	case dtypes.Float16, dtypes.Float32, dtypes.Float64:
		return fmt.Sprintf("<f%d", dtype.Size()), nil
	case dtypes.Complex64, dtypes.Complex128:
		return fmt.Sprintf("<c%d", dtype.Size()), nil
	case dtypes.String:
		return fmt.Sprintf("<U%d", max(maxChars, 1)), nil
	default:
		// BFloat16 has no standard NumPy dtype.
		return "", errors.Errorf("dtype %s not supported by .npy", dtype)
	}
}

// fortranToCOrder returns the elements of src (in column-major order) in row-major order.
func fortranToCOrder(shape shapes.Shape, itemSize int, src []byte) []byte {
	fortranStrides := make([]int, shape.Rank())
	stride := 1
	for axis, dim := range shape.Dimensions {
		fortranStrides[axis] = stride
		stride *= dim
	}
	dst := make([]byte, len(src))
	for cIdx, indices := range shape.Iter() {
		fIdx := 0
		for axis, idx := range indices {
			fIdx += idx * fortranStrides[axis]
		}
		copy(dst[cIdx*itemSize:(cIdx+1)*itemSize], src[fIdx*itemSize:(fIdx+1)*itemSize])
	}
	return dst
}

// decodeUTF32 decodes a zero-padded little-endian UTF-32 string.
func decodeUTF32(data []byte) string {
	var sb strings.Builder
	for ii := 0; ii+utf32Size <= len(data); ii += utf32Size {
		r := rune(binary.LittleEndian.Uint32(data[ii:]))
		if r == 0 {
			break
		}
		if !utf8.ValidRune(r) {
			r = utf8.RuneError
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// encodeUTF32 writes s as little-endian UTF-32 into data, zero padded. data must be large enough.
func encodeUTF32(s string, data []byte) {
	clear(data)
	ii := 0
	for _, r := range s {
		binary.LittleEndian.PutUint32(data[ii:], uint32(r))
		ii += utf32Size
	}
}

// FromNpzFile reads a .npz file and returns a map of tensor names to tensors.Tensor.
func FromNpzFile(filePath string) (map[string]*tensors.Tensor, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open .npz file %q", filePath)
	}
	defer func() { _ = file.Close() }()
	info, err := file.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat .npz file %q", filePath)
	}
	return FromNpzReader(file, info.Size())
}

// FromNpzReader reads a .npz archive (a zip of .npy files), returning a map of tensor names to tensors.Tensor.
// Files in the archive that are not .npy are ignored.
func FromNpzReader(r io.ReaderAt, size int64) (map[string]*tensors.Tensor, error) {
	zipReader, err := zip.NewReader(r, size)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create zip reader for .npz")
	}

	results := make(map[string]*tensors.Tensor)
	for _, f := range zipReader.File {
		cleanPath := path.Clean(f.Name)
		if path.IsAbs(cleanPath) || strings.HasPrefix(cleanPath, "..") {
			return nil, errors.Errorf("invalid (malicious?) path in .npz archive: %q (normalized to %q)",
				f.Name, cleanPath)
		}
		if !strings.HasSuffix(f.Name, ".npy") {
			klog.V(2).Infof("numpy: skipping %q in .npz archive", f.Name)
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open %q within .npz", f.Name)
		}
		tensor, err := fromNpyReader(rc, int64(min(f.UncompressedSize64, math.MaxInt64)))
		_ = rc.Close()
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to read tensor %q from .npz", f.Name)
		}
		results[strings.TrimSuffix(f.Name, ".npy")] = tensor
	}
	return results, nil
}

// ToNpyWriter serializes a tensors.Tensor to an io.Writer in .npy format (version 1.0).
func ToNpyWriter(tensor *tensors.Tensor, w io.Writer) error {
	if err := tensor.CheckValid(); err != nil {
		return err
	}
	shape := tensor.Shape()
	maxChars := 0
	if shape.DType == dtypes.String {
		tensors.ConstFlatData(tensor, func(flat []string) {
			for _, s := range flat {
				maxChars = max(maxChars, utf8.RuneCountInString(s))
			}
		})
	}
	descr, err := dtypeToNpy(shape.DType, maxChars)
	if err != nil {
		return err
	}

	// Shape tuple: "()" for scalars, "(N,)" for rank 1.
	var shapeTuple string
	switch shape.Rank() {
	case 0:
		shapeTuple = "()"
	case 1:
		shapeTuple = fmt.Sprintf("(%d,)", shape.Dimensions[0])
	default:
		shapeTuple = "(" + strings.Join(xslices.Map(shape.Dimensions, strconv.Itoa), ", ") + ")"
	}

	// Header is space padded and newline terminated, so the data is aligned to headerAlignment.
	var buf bytes.Buffer
	buf.WriteString(npyMagic)
	buf.Write([]byte{1, 0})
	buf.Write([]byte{0, 0}) // Header length, filled below.
	preambleLen := buf.Len()
	fmt.Fprintf(&buf, "{'descr': '%s', 'fortran_order': False, 'shape': %s, }", descr, shapeTuple)
	for (buf.Len()+1)%headerAlignment != 0 {
		buf.WriteByte(' ')
	}
	buf.WriteByte('\n')
	headerLen := buf.Len() - preambleLen
	if headerLen > 0xFFFF {
		return errors.Errorf("header for shape %s too large for .npy version 1.0", shape)
	}
	binary.LittleEndian.PutUint16(buf.Bytes()[preambleLen-2:], uint16(headerLen))
	if _, err := w.Write(buf.Bytes()); err != nil {
		return errors.Wrapf(err, "failed to write .npy header")
	}

	var writeErr error
	if shape.DType == dtypes.String {
		itemSize := max(maxChars, 1) * utf32Size
		tensors.ConstFlatData(tensor, func(flat []string) {
			data := make([]byte, len(flat)*itemSize)
			for ii, s := range flat {
				encodeUTF32(s, data[ii*itemSize:(ii+1)*itemSize])
			}
			_, writeErr = w.Write(data)
		})
	} else {
		err = tensor.ConstBytes(func(data []byte) {
			_, writeErr = w.Write(data)
		})
		if err != nil {
			return err
		}
	}
	if writeErr != nil {
		return errors.Wrapf(writeErr, "failed to write tensor data")
	}
	return nil
}

// ToNpyFile serializes a tensors.Tensor to a .npy file.
func ToNpyFile(tensor *tensors.Tensor, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create .npy file %q", filePath)
	}
	if err = ToNpyWriter(tensor, file); err != nil {
		_ = file.Close()
		return errors.WithMessagef(err, "writing %q", filePath)
	}
	return errors.Wrapf(file.Close(), "failed to close %q", filePath)
}

// ToNpzWriter serializes a map of tensors to w as a .npz archive. Tensors are written in name order.
func ToNpzWriter(tensorsMap map[string]*tensors.Tensor, w io.Writer) error {
	zipWriter := zip.NewWriter(w)
	for _, name := range slices.Sorted(maps.Keys(tensorsMap)) {
		npyName := name + ".npy"
		fileWriter, err := zipWriter.Create(npyName)
		if err != nil {
			return errors.Wrapf(err, "failed to create %q in .npz archive", npyName)
		}
		if err := ToNpyWriter(tensorsMap[name], fileWriter); err != nil {
			return errors.WithMessagef(err, "failed to write tensor %q to .npz archive", name)
		}
	}
	return errors.Wrapf(zipWriter.Close(), "failed to close zip archive")
}

// ToNpzFile serializes a map of tensors to a .npz file.
func ToNpzFile(tensorsMap map[string]*tensors.Tensor, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create .npz file %q", filePath)
	}
	if err = ToNpzWriter(tensorsMap, file); err != nil {
		_ = file.Close()
		return errors.WithMessagef(err, "writing %q", filePath)
	}
	return errors.Wrapf(file.Close(), "failed to close %q", filePath)
}
