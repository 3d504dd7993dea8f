// Package limiter runs a queue of tasks with a fixed maximum number
// in flight at any instant.
//
// Completion order is unspecified. A failing task does not cancel siblings
// already in flight; callers that want to stop scheduling new work on
// failure do so by cancelling the context.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultConcurrency is the number of simultaneously outstanding tasks
// when the caller does not specify one.
const DefaultConcurrency = 3

// Run executes fn for every index in [0, n) with at most max outstanding
// invocations. It returns once every started task has settled, even on
// early-exit paths, so no goroutine is leaked. The first task error is
// retained and returned; context cancellation stops the scheduling of new
// tasks but started ones are still awaited.
func Run(ctx context.Context, n, max int, fn func(ctx context.Context, i int) error) error {
	if max <= 0 {
		max = DefaultConcurrency
	}
	if n <= 0 {
		return nil
	}

	semaphore := make(chan struct{}, max)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	// A real failure beats a sibling's cancellation fallout: once the
	// context is cancelled, later tasks fail with ctx errors that would
	// otherwise mask the cause.
	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil || (isCancellation(firstErr) && !isCancellation(err)) {
			firstErr = err
		}
		mu.Unlock()
	}

	for i := 0; i < n; i++ {
		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			mu.Lock()
			err := firstErr
			mu.Unlock()
			if err != nil {
				return err
			}
			return fmt.Errorf("scheduling stopped: %w", ctx.Err())
		}

		wg.Add(1)
		go func(i int) {
			defer func() {
				<-semaphore
				wg.Done()
			}()

			// A cancellation signal is observed at the next suspension
			// point, not preemptively.
			select {
			case <-ctx.Done():
				return
			default:
			}

			if err := fn(ctx, i); err != nil {
				setErr(err)
			}
		}(i)
	}

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	return firstErr
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
