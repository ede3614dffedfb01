// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool runs independent tasks in goroutines, limiting how many run at the same time.
package workerspool

import (
	"runtime"
	"sync"
)

// Pool limits the number of tasks running in parallel.
type Pool struct {
	// maxParallelism is the limit of tasks running at the same time: 0 runs the tasks inline,
	// and a negative value means no limit.
	maxParallelism int
	mu             sync.Mutex
	cond           sync.Cond // Signaled whenever numRunning is decreased.
	numRunning     int
}

// New returns a new Pool with the default parallelism (runtime.NumCPU()).
func New() *Pool {
	w := &Pool{maxParallelism: runtime.NumCPU()}
	w.cond = sync.Cond{L: &w.mu}
	return w
}

// MaxParallelism returns the limit of tasks running at the same time.
// 0 means tasks are run inline, and -1 means unlimited.
func (w *Pool) MaxParallelism() int {
	return w.maxParallelism
}

// SetMaxParallelism sets the limit of tasks running at the same time.
//
// It should only be changed while no tasks are running.
func (w *Pool) SetMaxParallelism(maxParallelism int) {
	w.maxParallelism = maxParallelism
}

// lockedIsFull must be called with w.mu acquired.
func (w *Pool) lockedIsFull() bool {
	return w.maxParallelism >= 0 && w.numRunning >= w.maxParallelism
}

// WaitToStart waits until there is a worker available and starts task in a goroutine.
//
// If parallelism is disabled (MaxParallelism is 0), it runs the task inline and returns when it is finished.
func (w *Pool) WaitToStart(task func()) {
	switch {
	case w.maxParallelism < 0:
		go task()
		return
	case w.maxParallelism == 0:
		task()
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.lockedIsFull() {
		w.cond.Wait()
	}
	w.lockedStart(task)
}

// lockedStart must be called with w.mu acquired.
func (w *Pool) lockedStart(task func()) {
	w.numRunning++
	go func() {
		defer func() {
			w.mu.Lock()
			w.numRunning--
			w.cond.Signal()
			w.mu.Unlock()
		}()
		task()
	}()
}

// Map calls fn(ii) for ii in [0, n), in parallel up to the pool's limit, and returns once all calls finished.
// Each call is expected to write only its own results.
func (w *Pool) Map(n int, fn func(ii int)) {
	var wg sync.WaitGroup
	wg.Add(n)
	for ii := range n {
		w.WaitToStart(func() {
			defer wg.Done()
			fn(ii)
		})
	}
	wg.Wait()
}
