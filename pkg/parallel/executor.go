// Package parallel provides a bounded fan-out over an index range with an
// explicit join.
package parallel

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Executor splits an index range into contiguous chunks and runs one
// goroutine per chunk, up to a fixed number of workers.
type Executor struct {
	workers int
}

// NewExecutor creates an executor with the given worker count.
// Non-positive values default to runtime.NumCPU().
func NewExecutor(workers int) Executor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return Executor{workers: workers}
}

// Workers returns the configured worker count.
func (e Executor) Workers() int {
	return e.workers
}

// Execute calls fn for every chunk [start, end) of [0, n). It returns only
// after every chunk has finished (or one failed), so callers can treat the
// return as a barrier. The first error cancels ctx for the remaining chunks
// and is returned.
func (e Executor) Execute(ctx context.Context, n int, fn func(ctx context.Context, worker, start, end int) error) error {
	if n <= 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)

	workers := e.workers
	if workers > n {
		workers = n
	}
	q := n / workers
	r := n % workers

	start := 0
	for w := 0; w < workers; w++ {
		size := q
		if w < r {
			size++
		}
		end := start + size

		worker, lo, hi := w, start, end
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("worker %d panicked: %v", worker, p)
				}
			}()
			return fn(ctx, worker, lo, hi)
		})
		start = end
	}

	return g.Wait()
}

// ForEach calls fn once for every index in [0, n), in parallel chunks.
func (e Executor) ForEach(ctx context.Context, n int, fn func(i int) error) error {
	return e.Execute(ctx, n, func(ctx context.Context, _, start, end int) error {
		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	})
}
