package syncx

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// ReentrantLock is a mutual-exclusion lock that its owner may acquire
// repeatedly. Each Lock must be matched by an Unlock.
type ReentrantLock struct {
	base Synchronizer
}

// NewReentrantLock returns an unlocked lock.
func NewReentrantLock() *ReentrantLock {
	return &ReentrantLock{}
}

// Lock blocks until owner holds the lock or ctx is done.
func (l *ReentrantLock) Lock(ctx context.Context, owner Owner) error {
	if l.base.isOwner(owner) && l.base.State() == math.MaxInt32 {
		return fmt.Errorf("lock held %d times: %w", math.MaxInt32, ErrStateOverflow)
	}
	return l.base.AcquireExclusive(ctx, owner, 1)
}

// TryLock acquires the lock only if it is free or already held by owner.
func (l *ReentrantLock) TryLock(owner Owner) bool {
	return l.base.TryAcquireExclusive(owner, 1)
}

// Unlock decrements the hold count and wakes a waiter once it reaches zero.
func (l *ReentrantLock) Unlock(owner Owner) error {
	if !l.base.isOwner(owner) {
		return ErrNotOwner
	}
	l.base.ReleaseExclusive(owner, 1)
	return nil
}

// HoldCount returns how many times owner currently holds the lock.
func (l *ReentrantLock) HoldCount(owner Owner) int {
	if !l.base.isOwner(owner) {
		return 0
	}
	return int(l.base.State())
}

// IsLocked reports whether anyone holds the lock.
func (l *ReentrantLock) IsLocked() bool {
	return l.base.State() != 0
}

// Owner returns the current holder.
func (l *ReentrantLock) Owner() (Owner, bool) {
	return l.base.Owner()
}

// QueueLength returns the number of goroutines parked in Lock.
func (l *ReentrantLock) QueueLength() int {
	return l.base.QueueLength()
}

// Locker adapts the lock to sync.Locker for a fixed owner. Lock waits
// without a deadline; Unlock by a non-owner panics like sync.Mutex.
func (l *ReentrantLock) Locker(owner Owner) sync.Locker {
	return &ownedLocker{lock: l, owner: owner}
}

type ownedLocker struct {
	lock  *ReentrantLock
	owner Owner
}

func (o *ownedLocker) Lock() {
	if err := o.lock.Lock(context.Background(), o.owner); err != nil {
		panic(err)
	}
}

func (o *ownedLocker) Unlock() {
	if err := o.lock.Unlock(o.owner); err != nil {
		panic(err)
	}
}
