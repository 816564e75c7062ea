// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool implements a soft-limited pool of goroutines and a ParallelFor on top of it.
package workerspool

import (
	"math"
	"runtime"
	"sync"
)

// DefaultTargetCostPerTask is the amount of work (in units of the costPerUnit passed to ParallelFor)
// a single task should aim for. With costs given in bytes, it is 32KiB.
const DefaultTargetCostPerTask = 32 * 1024

// tasksPerWorker is the number of tasks ParallelFor splits the range into per unit of parallelism,
// so workers finishing early can pick up more work.
const tasksPerWorker = 4

// goroutineToParallelismRatio is how many goroutines may run per unit of maxParallelism.
const goroutineToParallelismRatio = 2

// Pool of workers with a soft limit on the number of goroutines running at the same time.
//
// Tasks that can't get a worker are run inline by the caller: ParallelFor never blocks waiting for
// a free worker, so it is safe to call it from within another task.
type Pool struct {
	// maxParallelism is a soft target on the limit of parallel work to do.
	maxParallelism int

	// targetCostPerTask is used by ChunkSize.
	targetCostPerTask float64

	mu         sync.Mutex
	numRunning int
}

// New return a new Pool of workers with the default parallelism (runtime.NumCPU()).
func New() *Pool {
	return &Pool{
		maxParallelism:    runtime.NumCPU(),
		targetCostPerTask: DefaultTargetCostPerTask,
	}
}

// IsEnabled returns whether parallelism is enabled (maxParallelism is != 0)
func (w *Pool) IsEnabled() bool {
	return w.maxParallelism != 0
}

// IsUnlimited returns whether parallelism is unlimited (maxParallelism < 0)
func (w *Pool) IsUnlimited() bool {
	return w.maxParallelism < 0
}

// MaxParallelism is a soft-target for parallelism (the limit of goroutines is higher that this).
// If set to 0 parallelism is disabled.
// If set to -1 parallelism is unlimited.
func (w *Pool) MaxParallelism() int {
	return w.maxParallelism
}

// SetMaxParallelism sets the maxParallelism.
//
// You should only change the parallelism before any workers start running. If changed during the execution
// the behavior is undefined.
func (w *Pool) SetMaxParallelism(maxParallelism int) *Pool {
	w.maxParallelism = maxParallelism
	return w
}

// TargetCostPerTask returns the amount of work each ParallelFor task aims for.
func (w *Pool) TargetCostPerTask() float64 {
	return w.targetCostPerTask
}

// SetTargetCostPerTask sets the amount of work each ParallelFor task aims for. Values <= 0 reset it
// to DefaultTargetCostPerTask.
//
// Like SetMaxParallelism, it should be set before the pool is used.
func (w *Pool) SetTargetCostPerTask(cost float64) *Pool {
	if cost <= 0 {
		cost = DefaultTargetCostPerTask
	}
	w.targetCostPerTask = cost
	return w
}

// lockedIsFull returns whether all available workers are in use.
//
// It must be called with Pool.mu acquired.
func (w *Pool) lockedIsFull() bool {
	if w.maxParallelism == 0 {
		return true
	} else if w.maxParallelism < 0 {
		return false
	}
	return w.numRunning >= goroutineToParallelismRatio*w.maxParallelism
}

// StartIfAvailable runs the task in a separate goroutine, if there are enough workers left.
// It returns true if it found workers to run the function, false otherwise.
//
// It's up to the client to synchronize the end of the function execution.
func (w *Pool) StartIfAvailable(task func()) bool {
	if w.IsUnlimited() {
		go task()
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lockedIsFull() {
		return false
	}
	w.numRunning++
	go func() {
		task()
		w.mu.Lock()
		w.numRunning--
		w.mu.Unlock()
	}()
	return true
}

// NumRunning returns the number of tasks currently running in the pool's goroutines.
func (w *Pool) NumRunning() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.numRunning
}

// ChunkSize returns the number of consecutive units ParallelFor assigns to each task.
//
// It is the larger of two sizes: the one that makes a task cost targetCostPerTask (so expensive
// units get smaller chunks), and the one that splits total into tasksPerWorker tasks per unit of
// parallelism. The result is always in [1, total] (or 0 if total is 0).
func (w *Pool) ChunkSize(total int, costPerUnit float64) int {
	if total <= 0 {
		return 0
	}
	if !w.IsEnabled() {
		return total
	}
	chunk := 1
	if costPerUnit > 0 {
		byCost := math.Ceil(w.targetCostPerTask / costPerUnit)
		if byCost >= float64(total) {
			return total
		}
		chunk = max(chunk, int(byCost))
	}
	if !w.IsUnlimited() {
		numTasks := w.maxParallelism * tasksPerWorker
		chunk = max(chunk, (total+numTasks-1)/numTasks)
	}
	return min(chunk, total)
}

// ParallelFor calls fn over disjoint, consecutive sub-ranges [start, end) that together cover
// [0, total), and returns when all calls have returned.
//
// costPerUnit is the estimated cost of one unit of the range (typically its size in bytes), used
// by ChunkSize. If the whole range fits in one chunk, or parallelism is disabled, fn is called
// inline once with [0, total). Chunks that can't get a worker are also run inline.
//
// fn must only write to state owned by its sub-range: no locking is done on its behalf.
func (w *Pool) ParallelFor(total int, costPerUnit float64, fn func(start, end int)) {
	if total <= 0 {
		return
	}
	chunk := w.ChunkSize(total, costPerUnit)
	if chunk >= total {
		fn(0, total)
		return
	}
	var wg sync.WaitGroup
	for start := 0; start < total; start += chunk {
		end := min(start+chunk, total)
		wg.Add(1)
		task := func() {
			defer wg.Done()
			fn(start, end)
		}
		if !w.StartIfAvailable(task) {
			task()
		}
	}
	wg.Wait()
}
