package concurrency

import (
	"context"
	"fmt"
	"reflect"
)

// Task represents a unit of work executed by a WorkerPool.
type Task interface {
	// Execute performs the task work.
	// A returned error or a panic is reported but never stops the worker.
	Execute(ctx context.Context) error

	// Name returns a human-readable name for the task (for logging/debugging)
	Name() string
}

// TaskFunc is a function type that implements Task
type TaskFunc func(ctx context.Context) error

// Execute implements Task interface for TaskFunc
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Name returns a default name for TaskFunc
func (f TaskFunc) Name() string {
	return "TaskFunc"
}

// Func adapts a plain side-effecting function to Task.
type Func func()

// Execute implements Task interface for Func
func (f Func) Execute(context.Context) error {
	f()
	return nil
}

// Name returns a default name for Func
func (f Func) Name() string {
	return "Func"
}

// NamedTask wraps a TaskFunc with a custom name
type NamedTask struct {
	name string
	task TaskFunc
}

// NewNamedTask creates a new NamedTask
func NewNamedTask(name string, task TaskFunc) *NamedTask {
	return &NamedTask{
		name: name,
		task: task,
	}
}

// Execute implements Task interface
func (nt *NamedTask) Execute(ctx context.Context) error {
	return nt.task(ctx)
}

// Name returns the task name
func (nt *NamedTask) Name() string {
	return nt.name
}

// isNilTask catches nil interfaces as well as typed nil adapters.
func isNilTask(task Task) bool {
	switch t := task.(type) {
	case nil:
		return true
	case TaskFunc:
		return t == nil
	case Func:
		return t == nil
	case *NamedTask:
		return t == nil || t.task == nil
	}
	switch v := reflect.ValueOf(task); v.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Map, reflect.Chan, reflect.Interface, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}

// taskName returns task.Name(), falling back to the dynamic type when
// Name panics.
func taskName(task Task) (name string) {
	defer func() {
		if r := recover(); r != nil {
			name = fmt.Sprintf("%T", task)
		}
	}()
	return task.Name()
}
