// Package dispatch fans a discovered file list out to the pipeline with a
// hard cap on simultaneous runs.
//
// A completed run frees its slot for the next queued path immediately.
// Output order is not input order; every input path yields exactly one
// outcome.
package dispatch

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/pixelframe/imgwatch/internal/pipeline"
)

// Runner is the part of the pipeline the dispatcher needs. Satisfied by
// *pipeline.Pipeline.
type Runner interface {
	Process(ctx context.Context, path string) pipeline.Outcome
}

// Dispatcher runs a batch of paths through the pipeline.
type Dispatcher struct {
	runner        Runner
	maxConcurrent int

	// Progress callbacks, for UI only; they never affect control flow.
	// onStart fires just before a file's run begins, onComplete right
	// after it ends together with the monotonically increasing count of
	// completed files.
	onStart    func(filename string)
	onComplete func(filename string, done int)
}

// New creates a Dispatcher with the given concurrency cap. Caps below one
// are treated as one.
func New(runner Runner, maxConcurrent int) *Dispatcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Dispatcher{runner: runner, maxConcurrent: maxConcurrent}
}

// OnStart sets the per-file start notification.
func (d *Dispatcher) OnStart(fn func(filename string)) {
	d.onStart = fn
}

// OnComplete sets the per-file completion notification.
func (d *Dispatcher) OnComplete(fn func(filename string, done int)) {
	d.onComplete = fn
}

// RunAll processes every path and returns one outcome per input, in
// completion order. At no instant are more than maxConcurrent runs active.
func (d *Dispatcher) RunAll(ctx context.Context, paths []string) []pipeline.Outcome {
	outcomes := make([]pipeline.Outcome, 0, len(paths))

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		completed int
	)
	semaphore := make(chan struct{}, d.maxConcurrent)

	for _, path := range paths {
		semaphore <- struct{}{} // wait for a slot
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			defer func() { <-semaphore }() // release the slot

			if d.onStart != nil {
				d.onStart(filepath.Base(path))
			}

			out := d.runner.Process(ctx, path)

			mu.Lock()
			outcomes = append(outcomes, out)
			completed++
			done := completed
			mu.Unlock()

			if d.onComplete != nil {
				d.onComplete(out.Filename, done)
			}
		}(path)
	}
	wg.Wait()

	return outcomes
}
