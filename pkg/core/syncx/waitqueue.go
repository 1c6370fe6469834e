package syncx

import (
	"container/list"
	"context"
	"sync"
)

type waiter struct {
	ready    chan struct{}
	signaled bool
}

// waitQueue parks goroutines until a release signals them to retry.
// A signal wakes exactly one waiter (signalNext) or all of them (signalAll).
type waitQueue struct {
	mu      sync.Mutex
	waiters list.List
}

func (q *waitQueue) push() *list.Element {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.waiters.PushBack(&waiter{ready: make(chan struct{})})
}

// remove reports false when the waiter was already signaled and unlinked.
func (q *waitQueue) remove(e *list.Element) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e.Value.(*waiter).signaled {
		return false
	}
	q.waiters.Remove(e)
	return true
}

// cancel unlinks e. A signal it already consumed is handed to the next waiter.
func (q *waitQueue) cancel(e *list.Element) {
	if !q.remove(e) {
		q.signalNext()
	}
}

func (q *waitQueue) signalNext() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if front := q.waiters.Front(); front != nil {
		q.wake(front)
	}
}

func (q *waitQueue) signalAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for front := q.waiters.Front(); front != nil; front = q.waiters.Front() {
		q.wake(front)
	}
}

// wake must be called with q.mu held.
func (q *waitQueue) wake(e *list.Element) {
	w := q.waiters.Remove(e).(*waiter)
	w.signaled = true
	close(w.ready)
}

func (q *waitQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.waiters.Len()
}

// await blocks until try succeeds or ctx is done.
// try runs again after enqueueing so a release racing with push is never lost.
func (q *waitQueue) await(ctx context.Context, try func() bool) error {
	if try() {
		return nil
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		e := q.push()
		if try() {
			q.cancel(e)
			return nil
		}
		select {
		case <-e.Value.(*waiter).ready:
			if try() {
				return nil
			}
		case <-ctx.Done():
			q.cancel(e)
			return ctx.Err()
		}
	}
}

// awaitShared is await for shared acquisition. A success that leaves
// resource behind (remaining > 0) propagates the wake-up to the next waiter.
func (q *waitQueue) awaitShared(ctx context.Context, try func() int32) error {
	return q.await(ctx, func() bool {
		remaining := try()
		if remaining < 0 {
			return false
		}
		if remaining > 0 {
			q.signalNext()
		}
		return true
	})
}
