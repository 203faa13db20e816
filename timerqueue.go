package mainloop

import (
	"container/heap"
	"time"
)

// MaxTimerDuration is the largest timer duration accepted by [TimerQueue].
// Longer durations would overflow the deadline arithmetic.
const MaxTimerDuration = time.Duration(1<<63-1) / 2

// TimerQueue orders timer-shaped callbacks (Asap, After, Interval) by next
// fire instant, and fires them off a monotonic clock. Equal deadlines fire in
// insertion order. Intervals are rescheduled relative to their previous
// deadline, not to the instant they actually ran.
//
// It is the software backend's scheduler, and is exported so native
// backends can reuse it for their timer-shaped callbacks. A TimerQueue is
// not safe for concurrent use.
type TimerQueue struct {
	now    func() time.Time
	byID   map[CallbackID]*timerEntry
	heap   timerHeap
	seq    uint64
	firing CallbackID
	// cancelled is set if the entry currently firing was cancelled by its
	// own callable.
	cancelled bool
}

type timerEntry struct {
	next  time.Time
	cb    *Callback
	id    CallbackID
	seq   uint64
	index int
}

// timerHeap is a min-heap of timer entries, by deadline then insertion.
type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].next.Equal(h[j].next) {
		return h[i].seq < h[j].seq
	}
	return h[i].next.Before(h[j].next)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// NewTimerQueue returns an empty queue driven by the monotonic wall clock.
func NewTimerQueue() *TimerQueue {
	return newTimerQueue(time.Now)
}

func newTimerQueue(now func() time.Time) *TimerQueue {
	return &TimerQueue{
		now:  now,
		byID: make(map[CallbackID]*timerEntry),
	}
}

// Now returns the queue's notion of the current instant.
func (q *TimerQueue) Now() time.Time { return q.now() }

// Len returns the number of pending entries.
func (q *TimerQueue) Len() int { return len(q.heap) }

// Push schedules cb to first fire at now + its duration (zero for Asap).
// IO callbacks are rejected with [ErrUnsupported].
func (q *TimerQueue) Push(id CallbackID, cb *Callback) error {
	if cb == nil {
		return ErrNilCallback
	}
	if cb.Kind() == KindIO {
		return ErrUnsupported
	}
	d, _ := cb.Duration()
	if d > MaxTimerDuration {
		return ErrDurationTooLong
	}
	if old, ok := q.byID[id]; ok {
		heap.Remove(&q.heap, old.index)
	}
	q.seq++
	e := &timerEntry{
		next: q.now().Add(d),
		cb:   cb,
		id:   id,
		seq:  q.seq,
	}
	heap.Push(&q.heap, e)
	q.byID[id] = e
	return nil
}

// Cancel removes the entry for id, returning its callback. Cancelling the
// entry that is currently firing (from within its own callable) prevents it
// from being rescheduled, and reports true.
func (q *TimerQueue) Cancel(id CallbackID) (*Callback, bool) {
	if e, ok := q.byID[id]; ok {
		heap.Remove(&q.heap, e.index)
		delete(q.byID, id)
		return e.cb, true
	}
	if id != 0 && id == q.firing && !q.cancelled {
		q.cancelled = true
		return nil, true
	}
	return nil, false
}

// Next returns the deadline of the earliest entry.
func (q *TimerQueue) Next() (time.Time, bool) {
	if len(q.heap) == 0 {
		return time.Time{}, false
	}
	return q.heap[0].next, true
}

// Timeout returns the time remaining until the earliest deadline, clamped
// at zero. The second result is false if the queue is empty.
func (q *TimerQueue) Timeout() (time.Duration, bool) {
	next, ok := q.Next()
	if !ok {
		return 0, false
	}
	return max(next.Sub(q.now()), 0), true
}

// RunDue fires the earliest entry, if its deadline is at or before now.
// It reports whether a callback fired.
//
// An Interval whose callable returns true is rescheduled at its previous
// deadline plus its period. Everything else is removed and then finished.
// If the callable panics the entry is dropped without being finished.
func (q *TimerQueue) RunDue(now time.Time) bool {
	if len(q.heap) == 0 || q.heap[0].next.After(now) {
		return false
	}
	e := heap.Pop(&q.heap).(*timerEntry)
	delete(q.byID, e.id)

	q.firing, q.cancelled = e.id, false
	keep := func() bool {
		defer func() { q.firing = 0 }()
		return e.cb.Call(Readiness{})
	}()
	cancelled := q.cancelled
	q.cancelled = false

	if cancelled {
		return true
	}
	if keep {
		if _, taken := q.byID[e.id]; !taken {
			d, _ := e.cb.Duration()
			q.seq++
			e.next = e.next.Add(d)
			e.seq = q.seq
			heap.Push(&q.heap, e)
			q.byID[e.id] = e
		}
		return true
	}
	e.cb.Finish()
	return true
}

// Drain removes every pending entry without firing it.
func (q *TimerQueue) Drain() []*Callback {
	out := make([]*Callback, 0, len(q.heap))
	for _, e := range q.heap {
		out = append(out, e.cb)
	}
	q.heap = nil
	clear(q.byID)
	return out
}
