package concurrency

import (
	"context"
	"fmt"
	"sync"
)

// TaskQueue is a bounded FIFO of tasks.
// Offers never block; Take blocks until a task arrives or the queue is
// closed and drained. Producers are serialized by a mutex, which makes
// OfferEvictingOldest atomic with respect to other producers. Consumers
// only ever free space, so they need no lock.
type TaskQueue struct {
	mu       sync.Mutex // guards producers and close
	ch       chan Task
	closed   bool
	capacity int
}

// NewTaskQueue creates a queue holding at most capacity tasks.
func NewTaskQueue(capacity int) (*TaskQueue, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: queue capacity must be positive, got %d", ErrInvalidArgument, capacity)
	}
	return &TaskQueue{
		ch:       make(chan Task, capacity),
		capacity: capacity,
	}, nil
}

// Offer enqueues task without blocking.
// Returns ErrQueueFull if queue is full (backpressure)
// Returns ErrQueueClosed if queue is closed
func (q *TaskQueue) Offer(task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// OfferEvictingOldest enqueues task, evicting the head first if the queue is
// full. The evicted task, if any, is returned.
func (q *TaskQueue) OfferEvictingOldest(task Task) (Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrQueueClosed
	}
	select {
	case q.ch <- task:
		return nil, nil
	default:
	}

	var evicted Task
	select {
	case evicted = <-q.ch:
	default:
		// A consumer emptied a slot in the meantime.
	}
	select {
	case q.ch <- task:
		return evicted, nil
	default:
		// Unreachable while producers hold mu: consumers only remove.
		return evicted, ErrQueueFull
	}
}

// Take blocks until a task is available, ctx is done, or the queue is
// closed and drained (ErrQueueClosed).
func (q *TaskQueue) Take(ctx context.Context) (Task, error) {
	select {
	case task, ok := <-q.ch:
		if !ok {
			return nil, ErrQueueClosed
		}
		return task, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Poll removes the head without blocking.
func (q *TaskQueue) Poll() (Task, bool) {
	select {
	case task, ok := <-q.ch:
		return task, ok
	default:
		return nil, false
	}
}

// Drain removes and returns every queued task.
func (q *TaskQueue) Drain() []Task {
	var tasks []Task
	for {
		task, ok := q.Poll()
		if !ok {
			return tasks
		}
		tasks = append(tasks, task)
	}
}

// Close stops accepting offers. Queued tasks stay available to Take.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// IsClosed returns true if the queue is closed
func (q *TaskQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Size returns the current number of queued tasks
func (q *TaskQueue) Size() int {
	return len(q.ch)
}

// Capacity returns the maximum capacity of the queue
func (q *TaskQueue) Capacity() int {
	return q.capacity
}
