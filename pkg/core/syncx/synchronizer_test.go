package syncx

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynchronizer_CompareAndSetStateIsLinearizable(t *testing.T) {
	const goroutines, increments = 10, 1000
	s := NewSynchronizer(0)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < increments; j++ {
				for {
					c := s.State()
					if s.CompareAndSetState(c, c+1) {
						break
					}
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(goroutines*increments), s.State())
}

func TestSynchronizer_CompareAndSetStateRejectsStaleExpect(t *testing.T) {
	s := NewSynchronizer(5)

	assert.False(t, s.CompareAndSetState(4, 9))
	assert.Equal(t, int32(5), s.State())
	assert.True(t, s.CompareAndSetState(5, 9))
	assert.Equal(t, int32(9), s.State())

	s.SetState(0)
	assert.Equal(t, int32(0), s.State())
}

func TestSynchronizer_ExclusiveReentrancy(t *testing.T) {
	s := NewSynchronizer(0)
	owner := NewOwner()

	for i := 0; i < 3; i++ {
		require.True(t, s.TryAcquireExclusive(owner, 1), "acquire #%d", i+1)
	}
	assert.Equal(t, int32(3), s.State())

	assert.False(t, s.TryReleaseExclusive(owner, 1))
	got, held := s.Owner()
	assert.True(t, held, "owner cleared after first release")
	assert.Equal(t, owner, got)

	assert.False(t, s.TryReleaseExclusive(owner, 1))
	_, held = s.Owner()
	assert.True(t, held, "owner cleared after second release")

	assert.True(t, s.TryReleaseExclusive(owner, 1))
	_, held = s.Owner()
	assert.False(t, held)
	assert.Equal(t, int32(0), s.State())
}

func TestSynchronizer_ExclusiveExcludesOtherOwners(t *testing.T) {
	s := NewSynchronizer(0)
	a, b := NewOwner(), NewOwner()

	require.True(t, s.TryAcquireExclusive(a, 1))
	assert.False(t, s.TryAcquireExclusive(b, 1))
	assert.False(t, s.TryReleaseExclusive(b, 1), "non-owner release must be ignored")
	assert.Equal(t, int32(1), s.State())

	require.True(t, s.TryReleaseExclusive(a, 1))
	assert.True(t, s.TryAcquireExclusive(b, 1))
}

func TestSynchronizer_ExclusiveReentryRefusesOverflow(t *testing.T) {
	s := NewSynchronizer(0)
	owner := NewOwner()
	require.True(t, s.TryAcquireExclusive(owner, math.MaxInt32))

	assert.False(t, s.TryAcquireExclusive(owner, 1))
	assert.Equal(t, int32(math.MaxInt32), s.State())
}

func TestSynchronizer_ExclusiveRejectsNoOwner(t *testing.T) {
	s := NewSynchronizer(0)
	assert.Panics(t, func() { s.TryAcquireExclusive(NoOwner, 1) })
}

func TestSynchronizer_SharedExhaustion(t *testing.T) {
	s := NewSynchronizer(2)

	var succeeded, failed atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if s.TryAcquireShared(1) >= 0 {
				succeeded.Add(1)
			} else {
				failed.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(2), succeeded.Load())
	assert.Equal(t, int32(1), failed.Load())
	assert.Equal(t, int32(0), s.State())
}

func TestSynchronizer_SharedAcquireReportsRemaining(t *testing.T) {
	s := NewSynchronizer(3)

	assert.Equal(t, int32(1), s.TryAcquireShared(2))
	assert.Equal(t, int32(-1), s.TryAcquireShared(2), "insufficient acquire must not mutate")
	assert.Equal(t, int32(1), s.State())
	assert.Equal(t, int32(0), s.TryAcquireShared(1))
}

func TestSynchronizer_SharedReleaseRefusesOverflow(t *testing.T) {
	s := NewSynchronizer(math.MaxInt32 - 1)

	assert.True(t, s.TryReleaseShared(1))
	assert.False(t, s.TryReleaseShared(1))
	assert.Equal(t, int32(math.MaxInt32), s.State())
}

func TestSynchronizer_SharedAcquireRefusesUnderflow(t *testing.T) {
	s := NewSynchronizer(math.MinInt32 + 1)

	assert.Negative(t, s.TryAcquireShared(1))
	assert.Negative(t, s.TryAcquireShared(2))
	assert.Equal(t, int32(math.MinInt32+1), s.State(), "failed acquire must not mutate")
}

func TestSynchronizer_AcquireExclusiveBlocksUntilRelease(t *testing.T) {
	s := NewSynchronizer(0)
	holder, waiter := NewOwner(), NewOwner()
	require.True(t, s.TryAcquireExclusive(holder, 1))

	acquired := make(chan error, 1)
	go func() {
		acquired <- s.AcquireExclusive(context.Background(), waiter, 1)
	}()

	require.Eventually(t, s.HasQueuedWaiters, time.Second, time.Millisecond)
	select {
	case <-acquired:
		t.Fatal("acquired while held by another owner")
	default:
	}

	assert.True(t, s.ReleaseExclusive(holder, 1))
	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not woken")
	}
	got, _ := s.Owner()
	assert.Equal(t, waiter, got)
}

func TestSynchronizer_AcquireSharedHonorsContext(t *testing.T) {
	s := NewSynchronizer(0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.AcquireShared(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, s.QueueLength(), "cancelled waiter must leave the queue")
}

func TestSynchronizer_ReleaseSharedPropagatesToWaiters(t *testing.T) {
	s := NewSynchronizer(0)
	const waiters = 4

	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.AcquireShared(context.Background(), 1))
		}()
	}
	require.Eventually(t, func() bool { return s.QueueLength() == waiters }, time.Second, time.Millisecond)

	// A single release of all units must wake every waiter through propagation.
	require.True(t, s.ReleaseShared(waiters))

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("waiters still parked: %d", s.QueueLength())
	}
	assert.Equal(t, int32(0), s.State())
}
