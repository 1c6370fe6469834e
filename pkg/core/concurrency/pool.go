package concurrency

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/fluxorio/taskexec/pkg/core"
	"github.com/fluxorio/taskexec/pkg/core/syncx"
)

// TracerName is the instrumentation name used for the default tracer.
const TracerName = "github.com/fluxorio/taskexec/pkg/core/concurrency"

// WorkerPoolConfig configures a WorkerPool
type WorkerPoolConfig struct {
	Name          string          // Pool name for logs, metrics and spans (default pool-<id>)
	Workers       int             // Number of worker goroutines
	QueueCapacity int             // Maximum number of queued tasks
	Policy        RejectionPolicy // Applied when the queue is full (default AbortPolicy)

	Logger   core.Logger
	Observer Observer
	Tracer   trace.Tracer

	// OnWorkerStart and OnWorkerStop run on the worker goroutine itself.
	OnWorkerStart func(workerID int)
	OnWorkerStop  func(workerID int)
}

// DefaultWorkerPoolConfig returns default worker pool configuration
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		Workers:       10,
		QueueCapacity: 1000,
		Policy:        AbortPolicy{},
	}
}

type workerSlot struct {
	state    atomic.Int32
	executed atomic.Uint64
	failed   atomic.Uint64
}

// WorkerPool runs submitted tasks on a fixed set of workers fed by a
// bounded FIFO queue. Submit never blocks on a full queue: the configured
// RejectionPolicy decides instead.
type WorkerPool struct {
	name     string
	workers  int
	queue    *TaskQueue
	policy   RejectionPolicy
	logger   core.Logger
	observer Observer
	tracer   trace.Tracer

	ctx      context.Context
	unwatch  atomic.Pointer[func() bool] // detaches the ctx shutdown hook
	onStart  func(int)
	onStop   func(int)
	slots    []workerSlot
	shutdown atomic.Bool
	exited   *syncx.CountDownLatch

	active    atomic.Int64
	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	rejected  atomic.Uint64
	discarded atomic.Uint64
}

// NewWorkerPool creates a pool and starts its workers.
// Tasks receive ctx; cancelling it shuts the pool down.
func NewWorkerPool(ctx context.Context, config WorkerPoolConfig) (*WorkerPool, error) {
	if config.Workers <= 0 || config.Workers > math.MaxInt32 {
		return nil, fmt.Errorf("%w: workers must be in [1, %d], got %d", ErrInvalidArgument, math.MaxInt32, config.Workers)
	}
	queue, err := NewTaskQueue(config.QueueCapacity)
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if config.Name == "" {
		config.Name = "pool-" + uuid.NewString()[:8]
	}
	if config.Policy == nil {
		config.Policy = AbortPolicy{}
	}
	if config.Logger == nil {
		config.Logger = core.NewDefaultLogger()
	}
	if config.Observer == nil {
		config.Observer = NopObserver{}
	}
	if config.Tracer == nil {
		config.Tracer = noop.NewTracerProvider().Tracer(TracerName)
	}

	p := &WorkerPool{
		name:     config.Name,
		workers:  config.Workers,
		queue:    queue,
		policy:   config.Policy,
		logger:   config.Logger.Named(config.Name),
		observer: config.Observer,
		tracer:   config.Tracer,
		ctx:      ctx,
		onStart:  config.OnWorkerStart,
		onStop:   config.OnWorkerStop,
		slots:    make([]workerSlot, config.Workers),
		exited:   syncx.NewCountDownLatch(int32(config.Workers)),
	}
	stop := context.AfterFunc(ctx, p.Shutdown)
	p.unwatch.Store(&stop)

	for i := 0; i < p.workers; i++ {
		go p.worker(i)
	}
	p.logger.Infof("started %d workers, queue capacity %d, policy %s",
		p.workers, queue.Capacity(), policyName(p.policy))
	return p, nil
}

// NewFixedWorkerPool creates a pool with the given size, queue capacity and
// rejection policy. A nil policy selects AbortPolicy.
func NewFixedWorkerPool(workers, queueCapacity int, policy RejectionPolicy) (*WorkerPool, error) {
	return NewWorkerPool(context.Background(), WorkerPoolConfig{
		Workers:       workers,
		QueueCapacity: queueCapacity,
		Policy:        policy,
	})
}

// Submit hands task to the pool without blocking on a full queue.
// It returns ErrNilTask, ErrPoolShutdown, or whatever the rejection policy
// returns when the queue is full.
func (p *WorkerPool) Submit(task Task) error {
	if isNilTask(task) {
		return ErrNilTask
	}
	if p.shutdown.Load() {
		return ErrPoolShutdown
	}

	p.submitted.Add(1)
	p.observer.TaskSubmitted()

	switch err := p.queue.Offer(task); err {
	case nil:
		return nil
	case ErrQueueClosed:
		// Shutdown won the race after the check above.
		p.recordRejected("shutdown")
		return ErrPoolShutdown
	default:
		return p.policy.Reject(task, p)
	}
}

// SubmitFunc submits fn under the given name.
func (p *WorkerPool) SubmitFunc(name string, fn TaskFunc) error {
	if fn == nil {
		return ErrNilTask
	}
	return p.Submit(NewNamedTask(name, fn))
}

// Shutdown stops accepting tasks. Queued tasks still run; running tasks
// are not interrupted. It returns immediately and is safe to call more
// than once.
func (p *WorkerPool) Shutdown() {
	if !p.shutdown.CompareAndSwap(false, true) {
		return
	}
	if stop := p.unwatch.Load(); stop != nil {
		(*stop)()
	}
	p.queue.Close()
	p.logger.Infof("shutting down, %d queued tasks left", p.queue.Size())
}

// AwaitTermination waits up to timeout for every worker to exit.
// It reports whether the pool terminated in time.
func (p *WorkerPool) AwaitTermination(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return p.AwaitTerminationContext(ctx) == nil
}

// AwaitTerminationContext waits for every worker to exit or ctx to end.
func (p *WorkerPool) AwaitTerminationContext(ctx context.Context) error {
	if err := p.exited.Await(ctx); err != nil {
		return fmt.Errorf("pool %s: await termination: %w", p.name, err)
	}
	return nil
}

// Close shuts the pool down and waits for termination. It satisfies
// Executor.
func (p *WorkerPool) Close(ctx context.Context) error {
	p.Shutdown()
	return p.AwaitTerminationContext(ctx)
}

// Name returns the pool name
func (p *WorkerPool) Name() string { return p.name }

// Workers returns the number of workers
func (p *WorkerPool) Workers() int { return p.workers }

// Policy returns the rejection policy
func (p *WorkerPool) Policy() RejectionPolicy { return p.policy }

// QueueSize returns the number of queued tasks
func (p *WorkerPool) QueueSize() int { return p.queue.Size() }

// QueueCapacity returns the queue bound
func (p *WorkerPool) QueueCapacity() int { return p.queue.Capacity() }

// ActiveCount returns the number of workers currently executing a task
func (p *WorkerPool) ActiveCount() int64 { return p.active.Load() }

// SubmittedCount returns the number of tasks that passed the shutdown check
func (p *WorkerPool) SubmittedCount() uint64 { return p.submitted.Load() }

// CompletedCount returns the number of executed tasks, failed ones included
func (p *WorkerPool) CompletedCount() uint64 { return p.completed.Load() }

// FailedCount returns the number of tasks that returned an error or panicked
func (p *WorkerPool) FailedCount() uint64 { return p.failed.Load() }

// RejectedCount returns the number of tasks refused with an error
func (p *WorkerPool) RejectedCount() uint64 { return p.rejected.Load() }

// DiscardedCount returns the number of tasks dropped without running
func (p *WorkerPool) DiscardedCount() uint64 { return p.discarded.Load() }

// IsShutdown reports whether Shutdown has been called
func (p *WorkerPool) IsShutdown() bool { return p.shutdown.Load() }

// IsTerminated reports whether every worker has exited
func (p *WorkerPool) IsTerminated() bool { return p.exited.Count() == 0 }

// State returns the pool lifecycle state
func (p *WorkerPool) State() PoolState {
	switch {
	case p.IsTerminated():
		return PoolTerminated
	case p.IsShutdown():
		return PoolShuttingDown
	default:
		return PoolRunning
	}
}

// Stats returns a snapshot of the pool.
func (p *WorkerPool) Stats() Stats {
	size, capacity := p.queue.Size(), p.queue.Capacity()
	s := Stats{
		Name:             p.name,
		State:            p.State().String(),
		Workers:          p.workers,
		ActiveWorkers:    p.active.Load(),
		QueueSize:        size,
		QueueCapacity:    capacity,
		QueueUtilization: float64(size) / float64(capacity) * 100,
		Policy:           policyName(p.policy),
		Submitted:        p.submitted.Load(),
		Completed:        p.completed.Load(),
		Failed:           p.failed.Load(),
		Rejected:         p.rejected.Load(),
		Discarded:        p.discarded.Load(),
		WorkerStats:      make([]WorkerStats, len(p.slots)),
	}
	for i := range p.slots {
		slot := &p.slots[i]
		s.WorkerStats[i] = WorkerStats{
			WorkerID:      i,
			State:         WorkerState(slot.state.Load()).String(),
			TasksExecuted: slot.executed.Load(),
			TasksFailed:   slot.failed.Load(),
		}
	}
	return s
}

func (p *WorkerPool) recordRejected(reason string) {
	p.rejected.Add(1)
	p.observer.TaskRejected(reason)
}

func (p *WorkerPool) recordDiscarded() {
	p.discarded.Add(1)
	p.observer.TaskDiscarded()
}
