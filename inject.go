package mainloop

import (
	"sync"

	"github.com/eapache/queue"
)

// InjectQueue is a thread-safe FIFO of functions handed to a loop from other
// goroutines. Backends drain it from their RunOne, and supply the signal
// used to wake a blocked wait.
//
// It implements [Injector].
type InjectQueue struct {
	items  *queue.Queue
	signal func()
	mu     sync.Mutex
	closed bool
}

// NewInjectQueue returns an empty queue. signal, if non-nil, is invoked
// (outside the lock) after every successful Inject.
func NewInjectQueue(signal func()) *InjectQueue {
	return &InjectQueue{
		items:  queue.New(),
		signal: signal,
	}
}

// Inject appends fn. It returns [ErrLoopClosed] once the queue is closed.
func (q *InjectQueue) Inject(fn func()) error {
	if fn == nil {
		return ErrNilCallback
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrLoopClosed
	}
	q.items.Add(fn)
	q.mu.Unlock()
	if q.signal != nil {
		q.signal()
	}
	return nil
}

// Pop removes the oldest function, if any.
func (q *InjectQueue) Pop() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Length() == 0 {
		return nil, false
	}
	return q.items.Remove().(func()), true
}

// Len returns the number of queued functions.
func (q *InjectQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// Close rejects further injections, and discards anything still queued.
func (q *InjectQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.items = queue.New()
}
