package concurrency

import (
	"errors"
	"fmt"
	"strings"
)

// RejectionPolicy decides what happens to a task that arrives while the
// queue is full. Reject runs synchronously on the submitting goroutine and
// its return value is what Submit returns.
type RejectionPolicy interface {
	Reject(task Task, pool *WorkerPool) error
}

// RejectionPolicyFunc adapts a function to RejectionPolicy.
// A non-nil return counts the task as rejected, nil as discarded.
type RejectionPolicyFunc func(task Task, pool *WorkerPool) error

// Reject implements RejectionPolicy
func (f RejectionPolicyFunc) Reject(task Task, pool *WorkerPool) error {
	if err := f(task, pool); err != nil {
		pool.recordRejected(f.String())
		return err
	}
	pool.recordDiscarded()
	return nil
}

func (f RejectionPolicyFunc) String() string { return "custom" }

// AbortPolicy refuses the task with ErrTaskRejected.
type AbortPolicy struct{}

// Reject implements RejectionPolicy
func (p AbortPolicy) Reject(task Task, pool *WorkerPool) error {
	pool.recordRejected(p.String())
	return fmt.Errorf("%w: task %s (queue %d/%d)",
		ErrTaskRejected, taskName(task), pool.QueueSize(), pool.QueueCapacity())
}

func (AbortPolicy) String() string { return "abort" }

// CallerRunsPolicy runs the task on the submitting goroutine, which slows
// the producer down to the pool's pace. Tasks arriving after shutdown are
// dropped.
type CallerRunsPolicy struct{}

// Reject implements RejectionPolicy
func (CallerRunsPolicy) Reject(task Task, pool *WorkerPool) error {
	if pool.IsShutdown() {
		pool.recordDiscarded()
		return nil
	}
	pool.runTask(task, callerWorkerID)
	return nil
}

func (CallerRunsPolicy) String() string { return "caller-runs" }

// DiscardPolicy silently drops the task.
type DiscardPolicy struct{}

// Reject implements RejectionPolicy
func (DiscardPolicy) Reject(_ Task, pool *WorkerPool) error {
	pool.recordDiscarded()
	return nil
}

func (DiscardPolicy) String() string { return "discard" }

// DiscardOldestPolicy drops the head of the queue and enqueues the new
// task in its place. No other submitter can interleave between the two
// steps.
type DiscardOldestPolicy struct{}

// Reject implements RejectionPolicy
func (DiscardOldestPolicy) Reject(task Task, pool *WorkerPool) error {
	evicted, err := pool.queue.OfferEvictingOldest(task)
	if evicted != nil {
		pool.recordDiscarded()
		pool.logger.Debugf("pool %s: evicted task %s for %s", pool.name, taskName(evicted), taskName(task))
	}
	if err != nil {
		// Closed by a concurrent Shutdown.
		pool.recordDiscarded()
	}
	return nil
}

func (DiscardOldestPolicy) String() string { return "discard-oldest" }

// PolicyByName resolves a configured policy name. The empty string
// selects AbortPolicy.
func PolicyByName(name string) (RejectionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "abort":
		return AbortPolicy{}, nil
	case "caller-runs", "caller_runs", "callerruns":
		return CallerRunsPolicy{}, nil
	case "discard":
		return DiscardPolicy{}, nil
	case "discard-oldest", "discard_oldest", "discardoldest":
		return DiscardOldestPolicy{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

// PolicyNames lists the names accepted by PolicyByName.
func PolicyNames() []string {
	return []string{"abort", "caller-runs", "discard", "discard-oldest"}
}

func policyName(p RejectionPolicy) string {
	if s, ok := p.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", p)
}

// IsRejected reports whether err means the pool refused a task, either
// through AbortPolicy or because it was shutting down.
func IsRejected(err error) bool {
	return errors.Is(err, ErrTaskRejected) || errors.Is(err, ErrPoolShutdown)
}
