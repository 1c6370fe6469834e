package syncx

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/fluxorio/taskexec/pkg/core/failfast"
)

// ExclusiveHooks is the acquire/release protocol of a mutual-exclusion primitive.
type ExclusiveHooks interface {
	TryAcquireExclusive(owner Owner, arg int32) bool
	TryReleaseExclusive(owner Owner, arg int32) bool
}

// SharedHooks is the acquire/release protocol of a counting primitive.
// TryAcquireShared returns a negative value on failure; zero means the
// acquisition succeeded and nothing is left, positive means later
// acquirers may proceed too.
type SharedHooks interface {
	TryAcquireShared(arg int32) int32
	TryReleaseShared(arg int32) bool
}

var (
	_ ExclusiveHooks = (*Synchronizer)(nil)
	_ SharedHooks    = (*Synchronizer)(nil)
	_ SharedHooks    = (*CountDownLatch)(nil)
)

// Synchronizer is an int32 state with compare-and-swap, an owner slot for
// exclusive mode and a wait queue for the blocking variants.
//
// Its own shared hooks implement counting semantics (state = available
// units); exclusive hooks implement a reentrant hold count.
type Synchronizer struct {
	state   atomic.Int32
	owner   atomic.Pointer[Owner]
	waiters waitQueue
}

// NewSynchronizer returns a synchronizer with the given initial state.
func NewSynchronizer(initial int32) *Synchronizer {
	s := &Synchronizer{}
	s.state.Store(initial)
	return s
}

// State returns the current state.
func (s *Synchronizer) State() int32 {
	return s.state.Load()
}

// SetState overwrites the state. Only for initialisation or reset while no
// other goroutine uses the synchronizer.
func (s *Synchronizer) SetState(v int32) {
	s.state.Store(v)
}

// CompareAndSetState atomically sets the state to update if it equals expect.
func (s *Synchronizer) CompareAndSetState(expect, update int32) bool {
	return s.state.CompareAndSwap(expect, update)
}

// Owner returns the current exclusive owner, if any.
func (s *Synchronizer) Owner() (Owner, bool) {
	if o := s.owner.Load(); o != nil {
		return *o, true
	}
	return NoOwner, false
}

func (s *Synchronizer) isOwner(owner Owner) bool {
	o := s.owner.Load()
	return o != nil && *o == owner
}

// TryAcquireExclusive takes the state from 0 to arg and records owner, or
// adds arg to the hold count when owner already holds it. Reentry that
// would overflow int32 is refused.
func (s *Synchronizer) TryAcquireExclusive(owner Owner, arg int32) bool {
	failfast.If(owner != NoOwner, "owner must not be NoOwner")
	failfast.Positive(arg, "acquire arg")

	c := s.state.Load()
	if c == 0 {
		if s.state.CompareAndSwap(0, arg) {
			s.owner.Store(&owner)
			return true
		}
		return false
	}
	if s.isOwner(owner) {
		// Only the owner reaches this branch, so a plain store is race free.
		if c > math.MaxInt32-arg {
			return false
		}
		s.state.Store(c + arg)
		return true
	}
	return false
}

// TryReleaseExclusive subtracts arg from the hold count. It returns true
// only when the count reaches zero and the owner has been cleared.
// Releases by a non-owner, or for more than is held, change nothing.
func (s *Synchronizer) TryReleaseExclusive(owner Owner, arg int32) bool {
	failfast.Positive(arg, "release arg")

	if !s.isOwner(owner) {
		return false
	}
	next := s.state.Load() - arg
	if next < 0 {
		return false
	}
	if next == 0 {
		// Clear the owner before publishing 0 so the next acquirer's owner
		// cannot be overwritten.
		s.owner.Store(nil)
		s.state.Store(0)
		return true
	}
	s.state.Store(next)
	return false
}

// TryAcquireShared takes arg units if that many are available. A negative
// result means the acquire failed and the state is unchanged.
func (s *Synchronizer) TryAcquireShared(arg int32) int32 {
	failfast.Positive(arg, "acquire arg")

	for {
		available := s.state.Load()
		if available < math.MinInt32+arg {
			// available-arg would wrap.
			return math.MinInt32
		}
		remaining := available - arg
		if remaining < 0 || s.state.CompareAndSwap(available, remaining) {
			return remaining
		}
	}
}

// TryReleaseShared returns arg units. It reports false, leaving the state
// untouched, only when the release would overflow int32.
func (s *Synchronizer) TryReleaseShared(arg int32) bool {
	ok, _ := s.releaseShared(arg)
	return ok
}

func (s *Synchronizer) releaseShared(arg int32) (bool, error) {
	failfast.Positive(arg, "release arg")

	for {
		current := s.state.Load()
		if current > math.MaxInt32-arg {
			return false, ErrStateOverflow
		}
		if s.state.CompareAndSwap(current, current+arg) {
			return true, nil
		}
	}
}

// AcquireExclusive blocks until TryAcquireExclusive succeeds or ctx is done.
func (s *Synchronizer) AcquireExclusive(ctx context.Context, owner Owner, arg int32) error {
	return s.waiters.await(ctx, func() bool {
		return s.TryAcquireExclusive(owner, arg)
	})
}

// ReleaseExclusive releases and wakes the next waiter on a full release.
func (s *Synchronizer) ReleaseExclusive(owner Owner, arg int32) bool {
	if s.TryReleaseExclusive(owner, arg) {
		s.waiters.signalNext()
		return true
	}
	return false
}

// AcquireShared blocks until TryAcquireShared succeeds or ctx is done.
func (s *Synchronizer) AcquireShared(ctx context.Context, arg int32) error {
	return s.waiters.awaitShared(ctx, func() int32 {
		return s.TryAcquireShared(arg)
	})
}

// ReleaseShared releases and wakes the next waiter.
func (s *Synchronizer) ReleaseShared(arg int32) bool {
	if s.TryReleaseShared(arg) {
		s.waiters.signalNext()
		return true
	}
	return false
}

// QueueLength returns the number of parked waiters.
func (s *Synchronizer) QueueLength() int {
	return s.waiters.len()
}

// HasQueuedWaiters reports whether any goroutine is parked.
func (s *Synchronizer) HasQueuedWaiters() bool {
	return s.QueueLength() > 0
}
