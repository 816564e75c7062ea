// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// gomlx_gather gathers slices of a tensor stored in a NumPy file, along one axis.
//
// Example:
//
//	$ gomlx_gather -data x.npy -indices i.npy -axis 1 -output y.npy -summary
//	$ gomlx_gather -data weights.npz:embeddings -index=3,-1,0 -print
//
// Tensors inside .npz archives are referred to as "<file>.npz:<name>".
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gather/pkg/core/tensors"
	"github.com/gomlx/gather/pkg/core/tensors/numpy"
	"github.com/gomlx/gather/pkg/kernels/gather"
	"github.com/gomlx/gather/pkg/support/fsutil"
	"github.com/gomlx/gather/pkg/support/xslices"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagData    = flag.String("data", "", "Path to the data tensor: a .npy file or '<file>.npz:<name>'.")
	flagIndices = flag.String("indices", "", "Path to the indices tensor (int32 or int64): a .npy file or "+
		"'<file>.npz:<name>'. Alternatively use -index.")
	flagIndex = xslices.Flag("index", nil, "Comma-separated list of indices, used if -indices is not given.",
		func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
	flagAxis   = flag.Int("axis", gather.DefaultAxis, "Axis of the data tensor to gather over. Negative values count from the end.")
	flagOutput = flag.String("output", "", "If set, the gathered tensor is saved to this .npy file.")
	flagForce  = flag.Bool("force", false, "Overwrite -output if it already exists.")
	flagConfig = flag.String("config", "", fmt.Sprintf(
		"Kernel configuration, e.g. \"parallelism=4,grain=64KiB\". Defaults to $%s.", gather.ConfigEnvVar))
	flagSummary = flag.Bool("summary", false, "Display a summary table of the inputs, output and kernel configuration.")
	flagPrint   = flag.Bool("print", false, "Print the gathered tensor.")
	flagBench   = flag.Int("bench", 0, "If > 0, runs the gather this many times and reports the throughput.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if flag.NArg() > 0 {
		klog.Errorf("Unexpected arguments %q. See 'gomlx_gather -help'.", flag.Args())
		os.Exit(1)
	}
	if *flagData == "" {
		klog.Errorf("Missing -data. See 'gomlx_gather -help'.")
		os.Exit(1)
	}
	if err := run(); err != nil {
		klog.Errorf("gomlx_gather failed: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	config := *flagConfig
	if config == "" {
		config = os.Getenv(gather.ConfigEnvVar)
	}
	var kernel *gather.Kernel
	if err := exceptions.TryCatch[error](func() { kernel = gather.MustNew(config) }); err != nil {
		return err
	}

	data, err := loadTensor(*flagData)
	if err != nil {
		return err
	}
	indices, err := loadIndices()
	if err != nil {
		return err
	}

	output, err := kernel.Compute(data, indices, *flagAxis)
	if err != nil {
		return err
	}
	if *flagSummary {
		fmt.Println(summaryTable(kernel, data, indices, output))
	}
	if *flagPrint {
		fmt.Println(output)
	}
	if *flagBench > 0 {
		fmt.Println(benchmark(kernel, data, indices, *flagAxis, *flagBench))
	}
	if *flagOutput != "" {
		return saveTensor(output, *flagOutput)
	}
	return nil
}

func loadIndices() (*tensors.Tensor, error) {
	if *flagIndices != "" {
		return loadTensor(*flagIndices)
	}
	if len(*flagIndex) == 0 {
		return nil, errors.New("either -indices or -index must be given")
	}
	return tensors.FromValue(*flagIndex), nil
}

// loadTensor from a .npy file or from an entry of a .npz file ("<file>.npz:<name>").
func loadTensor(location string) (*tensors.Tensor, error) {
	filePath, name, isNpz := strings.Cut(location, ".npz:")
	if isNpz {
		filePath += ".npz"
	}
	filePath, err := fsutil.ReplaceTildeInPath(filePath)
	if err != nil {
		return nil, err
	}
	if !isNpz {
		return numpy.FromNpyFile(filePath)
	}
	all, err := numpy.FromNpzFile(filePath)
	if err != nil {
		return nil, err
	}
	t, found := all[name]
	if !found {
		return nil, errors.Errorf("tensor %q not found in %q", name, filePath)
	}
	return t, nil
}

func saveTensor(t *tensors.Tensor, outputPath string) error {
	outputPath = must.M1(fsutil.ReplaceTildeInPath(outputPath))
	exists, err := fsutil.FileExists(outputPath)
	if err != nil {
		return err
	}
	if exists && !*flagForce {
		return errors.Errorf("output file %q already exists, use -force to overwrite it", outputPath)
	}
	if err = numpy.ToNpyFile(t, outputPath); err != nil {
		return err
	}
	klog.V(1).Infof("saved %s to %q", t.Shape(), outputPath)
	return nil
}
