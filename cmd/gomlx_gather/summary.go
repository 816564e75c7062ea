// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gather/pkg/core/tensors"
	"github.com/gomlx/gather/pkg/kernels/gather"
	"github.com/janpfeifer/must"
	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)

	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)
)

func newTable(withHeader bool) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if withHeader && row == lgtable.HeaderRow {
				return headerRowStyle
			}
			if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Right)
			} else {
				s = s.Align(lipgloss.Left)
			}
			return
		})
}

// summaryTable lists the shapes and sizes of the tensors involved, and the kernel configuration.
func summaryTable(kernel *gather.Kernel, data, indices, output *tensors.Tensor) string {
	table := newTable(true).Headers("", "Shape", "Elements", "Bytes")
	for _, entry := range []struct {
		name   string
		tensor *tensors.Tensor
	}{{"data", data}, {"indices", indices}, {"output", output}} {
		table.Row(entry.name, entry.tensor.Shape().String(),
			humanize.Comma(int64(entry.tensor.Size())),
			humanize.Bytes(uint64(entry.tensor.Memory())))
	}

	axis, _, _ := gather.PlanShape(data.Shape(), indices.Shape(), *flagAxis)
	plan := gather.NewCopyPlan(data.Shape(), axis, indices.Size())
	info := newTable(false).
		Row("axis", fmt.Sprintf("%d", axis)).
		Row("blocks", humanize.Comma(int64(plan.Total()))).
		Row("block size", humanize.IBytes(uint64(plan.BlockBytes))).
		Row("managed copy", fmt.Sprintf("%v", data.DType().IsManaged())).
		Row("kernel", kernel.Config().String())
	return lipgloss.JoinVertical(lipgloss.Left, table.Render(), info.Render())
}

// benchmark runs the gather numRuns times, displaying a progress bar, and returns a report.
func benchmark(kernel *gather.Kernel, data, indices *tensors.Tensor, axis, numRuns int) string {
	term := termenv.NewOutput(os.Stderr)
	term.HideCursor()
	defer term.ShowCursor()
	bar := progressbar.NewOptions(numRuns,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("gather"),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("gathers"),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionClearOnFinish(),
	)
	var outputBytes uint64
	start := time.Now()
	for range numRuns {
		output := must.M1(kernel.Compute(data, indices, axis))
		outputBytes += uint64(output.Memory())
		_ = bar.Add(1)
	}
	elapsed := time.Since(start)
	_ = bar.Finish()

	perRun := elapsed / time.Duration(numRuns)
	throughput := uint64(float64(outputBytes) / max(elapsed.Seconds(), 1e-9))
	return newTable(false).
		Row("runs", humanize.Comma(int64(numRuns))).
		Row("total time", elapsed.String()).
		Row("time per gather", perRun.String()).
		Row("throughput", humanize.Bytes(throughput)+"/s").
		Render()
}
