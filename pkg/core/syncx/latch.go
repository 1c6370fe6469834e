package syncx

import (
	"context"

	"github.com/fluxorio/taskexec/pkg/core/failfast"
)

// CountDownLatch opens permanently once CountDown has been called count
// times. Await blocks until then.
type CountDownLatch struct {
	base Synchronizer
}

// NewCountDownLatch returns a latch that opens after count count-downs.
// A zero count yields an already open latch; a negative count panics.
func NewCountDownLatch(count int32) *CountDownLatch {
	failfast.If(count >= 0, "latch count must not be negative, got %d", count)
	l := &CountDownLatch{}
	l.base.SetState(count)
	return l
}

// TryAcquireShared returns 1 when the latch is open and -1 otherwise.
// It never consumes anything.
func (l *CountDownLatch) TryAcquireShared(int32) int32 {
	if l.base.State() == 0 {
		return 1
	}
	return -1
}

// TryReleaseShared decrements the count and reports true only for the
// decrement that reaches zero. Once open it always reports false.
func (l *CountDownLatch) TryReleaseShared(int32) bool {
	for {
		c := l.base.State()
		if c == 0 {
			return false
		}
		next := c - 1
		if l.base.CompareAndSetState(c, next) {
			return next == 0
		}
	}
}

// CountDown decrements the count, releasing every waiter when it hits zero.
// It returns true for the call that opened the latch.
func (l *CountDownLatch) CountDown() bool {
	if l.TryReleaseShared(1) {
		l.base.waiters.signalAll()
		return true
	}
	return false
}

// Await blocks until the latch is open or ctx is done.
func (l *CountDownLatch) Await(ctx context.Context) error {
	return l.base.waiters.awaitShared(ctx, func() int32 {
		return l.TryAcquireShared(1)
	})
}

// Count returns the remaining count.
func (l *CountDownLatch) Count() int32 {
	return l.base.State()
}
