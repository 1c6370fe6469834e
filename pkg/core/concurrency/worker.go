package concurrency

import (
	"context"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// callerWorkerID marks tasks run on the submitter by CallerRunsPolicy.
const callerWorkerID = -1

// worker pulls tasks until the queue is closed and drained.
func (p *WorkerPool) worker(id int) {
	slot := &p.slots[id]
	if p.onStart != nil {
		p.onStart(id)
	}
	defer func() {
		slot.state.Store(int32(WorkerExited))
		if p.onStop != nil {
			p.onStop(id)
		}
		if p.exited.CountDown() {
			p.logger.Infof("terminated: completed=%d failed=%d rejected=%d discarded=%d",
				p.completed.Load(), p.failed.Load(), p.rejected.Load(), p.discarded.Load())
		}
	}()

	for {
		slot.state.Store(int32(WorkerWaiting))
		// Shutdown closes the queue; Take keeps returning tasks until it is empty.
		task, err := p.queue.Take(context.Background())
		if err != nil {
			return
		}
		slot.state.Store(int32(WorkerExecuting))
		p.active.Add(1)
		p.runTask(task, id)
		p.active.Add(-1)
	}
}

// runTask executes task inside a recover boundary and a span, then updates
// the counters. It is shared by workers and CallerRunsPolicy.
func (p *WorkerPool) runTask(task Task, workerID int) {
	name := taskName(task)
	ctx, span := p.tracer.Start(p.ctx, "taskexec.task",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("taskexec.pool", p.name),
			attribute.String("taskexec.task", name),
			attribute.Int("taskexec.worker", workerID),
		))

	start := time.Now()
	err := execute(ctx, task)
	elapsed := time.Since(start)

	var slot *workerSlot
	if workerID >= 0 {
		slot = &p.slots[workerID]
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.failed.Add(1)
		if slot != nil {
			slot.failed.Add(1)
		}
		if pe, ok := err.(*PanicError); ok {
			p.logger.Errorf("worker %d: %v\n%s", workerID, pe, pe.Stack)
		} else {
			p.logger.Errorf("worker %d: task %s failed: %v", workerID, name, err)
		}
	}
	span.End()

	if slot != nil {
		slot.executed.Add(1)
	}
	p.completed.Add(1)
	p.observer.TaskCompleted(elapsed, err)
}

func execute(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Task: taskName(task), Value: r, Stack: debug.Stack()}
		}
	}()
	return task.Execute(ctx)
}
