package syncx

import (
	"context"
	"fmt"
)

// Semaphore is a counting semaphore. Permits are plain counts; a release
// does not have to come from an acquirer.
type Semaphore struct {
	base Synchronizer
}

// NewSemaphore returns a semaphore holding permits. A negative value means
// that many releases must happen before any acquire succeeds.
func NewSemaphore(permits int32) *Semaphore {
	s := &Semaphore{}
	s.base.SetState(permits)
	return s
}

// Acquire blocks until n permits are taken or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context, n int32) error {
	return s.base.AcquireShared(ctx, n)
}

// TryAcquire takes n permits only if they are available right now.
func (s *Semaphore) TryAcquire(n int32) bool {
	remaining := s.base.TryAcquireShared(n)
	if remaining > 0 {
		s.base.waiters.signalNext()
	}
	return remaining >= 0
}

// Release returns n permits and wakes a waiter.
func (s *Semaphore) Release(n int32) error {
	if _, err := s.base.releaseShared(n); err != nil {
		return fmt.Errorf("release %d permits: %w", n, err)
	}
	s.base.waiters.signalNext()
	return nil
}

// AvailablePermits returns the current permit count.
func (s *Semaphore) AvailablePermits() int32 {
	return s.base.State()
}

// DrainPermits takes every available permit and returns how many it took.
func (s *Semaphore) DrainPermits() int32 {
	for {
		current := s.base.State()
		if current <= 0 {
			return 0
		}
		if s.base.CompareAndSetState(current, 0) {
			return current
		}
	}
}

// QueueLength returns the number of goroutines parked in Acquire.
func (s *Semaphore) QueueLength() int {
	return s.base.QueueLength()
}
