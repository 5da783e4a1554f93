package worker

import (
	"context"
	"errors"
)

// Run executes jobs on a pool of the given width and returns their
// results in completion order.
func Run(ctx context.Context, workers int, jobs []Job, opts ...Option) []Result {
	if len(jobs) == 0 {
		return []Result{}
	}

	pool := NewPool(ctx, workers, opts...)
	pool.Start()

	for _, job := range jobs {
		pool.Submit(job)
	}

	return pool.Wait()
}

// FirstError returns the error that caused a batch to fail. Cancellation
// errors are only reported when nothing else failed, since they are
// usually the consequence of another job's failure.
func FirstError(results []Result) error {
	var cancelled error
	for _, r := range results {
		err := r.GetError()
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) {
			if cancelled == nil {
				cancelled = err
			}
			continue
		}
		return err
	}
	return cancelled
}
