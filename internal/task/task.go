// Package task models the unit of work serving one request: it completes
// exactly once, runs done callbacks, and owns task-local slots that sibling
// tasks cannot see.
package task

import (
	"context"
	"sync"
)

type ctxKey struct{}

// Task is completed by whoever owns the request's goroutine. Callbacks and
// locals may be touched from other goroutines the handler spawns.
type Task struct {
	mu        sync.Mutex
	done      bool
	err       error
	callbacks []func(*Task)
	locals    map[any]any
}

func New() *Task { return &Task{} }

func (t *Task) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Err is the error the task completed with, if any.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// AddDoneCallback registers fn to run once when the task completes. If the
// task is already done, fn runs immediately on the caller's goroutine.
func (t *Task) AddDoneCallback(fn func(*Task)) {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		fn(t)
		return
	}
	t.callbacks = append(t.callbacks, fn)
	t.mu.Unlock()
}

// Complete marks the task done and runs its callbacks in registration order.
// Only the first call has effect.
func (t *Task) Complete(err error) {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	t.err = err
	cbs := t.callbacks
	t.callbacks = nil
	t.mu.Unlock()

	for _, fn := range cbs {
		fn(t)
	}
}

// Local is a typed slot stored on a Task.
type Local[T any] struct {
	name string
}

func NewLocal[T any](name string) *Local[T] {
	return &Local[T]{name: name}
}

func (l *Local[T]) String() string { return l.name }

func (l *Local[T]) Get(t *Task) (T, bool) {
	var zero T
	if t == nil {
		return zero, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.locals[l]
	if !ok {
		return zero, false
	}
	return v.(T), true
}

func (l *Local[T]) Set(t *Task, v T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.locals == nil {
		t.locals = map[any]any{}
	}
	t.locals[l] = v
}

// Take returns the slot's value and clears it in one step.
func (l *Local[T]) Take(t *Task) (T, bool) {
	var zero T
	if t == nil {
		return zero, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.locals[l]
	if !ok {
		return zero, false
	}
	delete(t.locals, l)
	return v.(T), true
}

func With(ctx context.Context, t *Task) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

// From returns the task serving ctx, or nil.
func From(ctx context.Context) *Task {
	t, _ := ctx.Value(ctxKey{}).(*Task)
	return t
}
