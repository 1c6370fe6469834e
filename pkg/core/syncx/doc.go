// Package syncx provides a state-based synchronizer and the primitives
// built on it: a reentrant lock, a counting semaphore and a countdown latch.
//
// A Synchronizer owns a single int32 state that is only ever mutated
// through compare-and-swap once it is shared. What the state means is up to
// the primitive using it:
//
//   - ReentrantLock: hold count (0 = unlocked) plus an owner identity
//   - Semaphore: available permits
//   - CountDownLatch: remaining count-downs (0 = open for good)
//
// Acquisition comes in two flavours. The Try* hooks never block and never
// fail loudly: a false or negative return is the only "not now" signal.
// The blocking methods (Lock, Acquire, Await) park the caller on a FIFO wait
// queue and retry the hook whenever a release signals them. Waiting is not
// fair: a caller arriving while a woken waiter is on its way may take the
// resource first.
//
// Goroutines have no identity, so exclusive ownership is expressed with an
// explicit Owner token:
//
//	owner := syncx.NewOwner()
//	lock := syncx.NewReentrantLock()
//	if err := lock.Lock(ctx, owner); err != nil {
//	    return err
//	}
//	defer lock.Unlock(owner)
package syncx
