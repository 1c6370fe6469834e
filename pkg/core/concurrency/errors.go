package concurrency

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned by constructors given non-positive sizes.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNilTask is returned when Submit is called without a task.
	ErrNilTask = errors.New("task cannot be nil")

	// ErrPoolShutdown is returned when submitting to a pool that is shutting down or terminated.
	ErrPoolShutdown = errors.New("worker pool is shut down")

	// ErrTaskRejected is returned by AbortPolicy when the queue is full.
	ErrTaskRejected = errors.New("task rejected")

	// ErrQueueFull is returned when offering to a full TaskQueue (backpressure)
	ErrQueueFull = errors.New("task queue is full")

	// ErrQueueClosed is returned when offering to a closed queue, or taking
	// from one that is closed and drained.
	ErrQueueClosed = errors.New("task queue is closed")

	// ErrUnknownPolicy is returned by PolicyByName for unrecognised names.
	ErrUnknownPolicy = errors.New("unknown rejection policy")
)

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	Task  string
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task %s panicked: %v", e.Task, e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
