// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package mainloop

import (
	"sync"
)

// TaskID identifies a task spawned on an [Executor].
type TaskID uint64

// Executor multiplexes poll-based computations onto a [Loop]. It is not a
// second root scheduler: when no task is ready it simply drives the loop,
// and timer or I/O callbacks that wake tasks repopulate its run queue.
//
// An Executor is confined to its loop's goroutine, except for the wakers it
// hands to tasks, which may be used from anywhere.
type Executor struct {
	loop   *Loop
	tasks  map[TaskID]*task
	queue  *runQueue
	target *wakeTarget
	nextID TaskID
}

type task struct {
	future Future[struct{}]
	waker  Waker
}

// runQueue is the set of task ids woken since the last drain.
type runQueue struct {
	ids []TaskID
	mu  sync.Mutex
}

// push appends id, reporting whether the queue was empty.
func (q *runQueue) push(id TaskID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
	return len(q.ids) == 1
}

func (q *runQueue) pushAll(ids []TaskID) {
	if len(ids) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, ids...)
}

// take atomically takes and clears the queue.
func (q *runQueue) take() []TaskID {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := q.ids
	q.ids = nil
	return ids
}

func (q *runQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}

// wakeTarget is the part of an executor shared with task wakers.
type wakeTarget struct {
	queue    *runQueue
	injector Injector
	owner    uint64
}

type taskWaker struct {
	target *wakeTarget
	id     TaskID
}

// wake enqueues the task. A wake from a foreign goroutine that makes the
// queue non-empty also injects a no-op, so a loop blocked waiting returns
// and the executor drains its queue.
func (w *taskWaker) wake() {
	if !w.target.queue.push(w.id) {
		return
	}
	if getGoroutineID() == w.target.owner {
		return
	}
	_ = w.target.injector.Inject(func() {})
}

// NewExecutor returns an executor driving l.
func NewExecutor(l *Loop) *Executor {
	q := new(runQueue)
	return &Executor{
		loop:  l,
		tasks: make(map[TaskID]*task),
		queue: q,
		target: &wakeTarget{
			queue:    q,
			injector: l.injector,
			owner:    l.owner,
		},
	}
}

// Loop returns the loop the executor drives.
func (e *Executor) Loop() *Loop { return e.loop }

// Len returns the number of tasks that have not completed.
func (e *Executor) Len() int { return len(e.tasks) }

// Spawn adds f as a new task, to be polled at least once.
func (e *Executor) Spawn(f Future[struct{}]) TaskID {
	e.nextID++
	id := e.nextID
	e.tasks[id] = &task{
		future: f,
		waker:  Waker{w: &taskWaker{target: e.target, id: id}},
	}
	e.queue.push(id)
	return id
}

// RunOne polls every task woken since the last call. If none were woken it
// delegates to [Loop.RunOne] instead. It returns false once the loop is
// terminated.
//
// Tasks are polled with the loop marked as running, so the free functions
// ([CallAfter], [CallIO], etc) register on it. If a task panics it is
// removed, the remaining woken tasks stay queued, and the panic propagates.
func (e *Executor) RunOne(wait bool) bool {
	if e.loop.Terminated() {
		return false
	}
	ids := e.queue.take()
	if len(ids) == 0 {
		return e.loop.RunOne(wait)
	}
	return e.loop.enter(func() {
		e.poll(ids)
	})
}

// Run calls RunOne(true) until the loop is terminated.
func (e *Executor) Run() {
	for e.RunOne(true) {
	}
}

func (e *Executor) poll(ids []TaskID) {
	var i int
	defer func() {
		if i < len(ids) {
			delete(e.tasks, ids[i])
			e.queue.pushAll(ids[i+1:])
		}
	}()
	for ; i < len(ids); i++ {
		id := ids[i]
		t, ok := e.tasks[id]
		if !ok {
			// completed, or woken more than once
			continue
		}
		if _, done := t.future.Poll(t.waker); done {
			delete(e.tasks, id)
			e.loop.logger.Trace().
				Uint64("loop", e.loop.id).
				Uint64("task", uint64(id)).
				Log("mainloop: task complete")
		}
	}
}

// BlockOn spawns f, and runs the executor until it completes, returning its
// result. Completion terminates the loop. If the loop terminates first,
// BlockOn returns false.
func BlockOn[T any](e *Executor, f Future[T]) (T, bool) {
	var (
		result T
		done   bool
	)
	e.Spawn(FutureFunc[struct{}](func(w Waker) (struct{}, bool) {
		v, ok := f.Poll(w)
		if !ok {
			return struct{}{}, false
		}
		result, done = v, true
		e.loop.Quit()
		return struct{}{}, true
	}))
	for !done && e.RunOne(true) {
	}
	return result, done
}
