package concurrency

import "time"

// Observer receives task lifecycle events from a WorkerPool.
// Calls happen on submitter and worker goroutines and must not block.
type Observer interface {
	TaskSubmitted()
	TaskRejected(policy string)
	TaskDiscarded()
	TaskCompleted(duration time.Duration, err error)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) TaskSubmitted()                     {}
func (NopObserver) TaskRejected(string)                {}
func (NopObserver) TaskDiscarded()                     {}
func (NopObserver) TaskCompleted(time.Duration, error) {}
