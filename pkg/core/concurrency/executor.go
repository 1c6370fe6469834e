package concurrency

import (
	"context"
)

// Executor abstracts goroutine pool management and task execution.
// Components that only need to hand off work depend on this instead of
// *WorkerPool.
type Executor interface {
	// Submit queues a task for execution.
	// Returns an error if the task was rejected or the executor is closed.
	Submit(task Task) error

	// Close stops intake and waits for queued tasks to finish (up to ctx).
	Close(ctx context.Context) error

	// Stats returns current executor statistics
	Stats() Stats

	// Name identifies the executor in logs and metrics
	Name() string
}

var _ Executor = (*WorkerPool)(nil)

// Go submits fn to e under name.
func Go(e Executor, name string, fn func(ctx context.Context) error) error {
	if fn == nil {
		return ErrNilTask
	}
	return e.Submit(NewNamedTask(name, fn))
}
