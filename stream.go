package mainloop

import (
	"runtime"
	"sync"

	"github.com/eapache/queue"
	"github.com/joeycumines/logiface"
)

// Stream is a sequence of readiness events for one handle, consumed by
// polling. The handle is registered (via [CallIO]) on the first poll, which
// must happen with a loop running on the calling goroutine; events observed
// by the loop are queued until polled.
//
// The registration outlives the handle until the next readiness event after
// [Stream.Close], or after the Stream becomes unreachable, at which point
// the loop is told to stop watching.
type Stream struct {
	state *streamState
}

// streamState is shared between the stream handle and the loop's
// registration, which must not keep the handle reachable.
type streamState struct {
	items   *queue.Queue
	err     error
	waker   Waker
	logger  *logiface.Logger[logiface.Event]
	fd      uintptr
	mu      sync.Mutex
	dir     Direction
	alive   bool
	started bool
}

var _ IOSource = (*streamState)(nil)

// NewStream returns a stream of readiness events for fd, in direction dir.
func NewStream(fd uintptr, dir Direction) *Stream {
	st := &streamState{
		items: queue.New(),
		fd:    fd,
		dir:   dir,
		alive: true,
	}
	s := &Stream{state: st}
	runtime.AddCleanup(s, (*streamState).release, st)
	return s
}

func (st *streamState) Fd() uintptr          { return st.fd }
func (st *streamState) Direction() Direction { return st.dir }

// OnReady queues r and wakes the consumer, unless the stream was released.
func (st *streamState) OnReady(r Readiness) bool {
	st.mu.Lock()
	if !st.alive {
		st.mu.Unlock()
		st.logger.Debug().
			Uint64("fd", uint64(st.fd)).
			Log("mainloop: stream released, stopping readiness watch")
		return false
	}
	st.items.Add(r)
	w := st.waker
	st.mu.Unlock()
	w.Wake()
	return true
}

func (st *streamState) release() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.alive = false
	st.waker = Waker{}
	st.items = queue.New()
}

// register installs the stream on the running loop. A failure is kept, and
// reported by every subsequent poll.
func (st *streamState) register() {
	l, err := current()
	if err == nil {
		st.logger = l.logger
		_, err = l.CallIO(st)
	}
	if err != nil {
		st.mu.Lock()
		st.err = err
		st.mu.Unlock()
	}
}

// PollNext returns the next readiness event, if one has been observed.
// Otherwise it stores w, to be woken when one is. If registration failed
// the error is returned as a ready [Readiness], on every poll.
func (s *Stream) PollNext(w Waker) (Readiness, bool) {
	st := s.state

	st.mu.Lock()
	start := !st.started
	st.started = true
	st.mu.Unlock()
	if start {
		st.register()
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.err != nil {
		return Readiness{Err: st.err}, true
	}
	if st.items.Length() != 0 {
		return st.items.Remove().(Readiness), true
	}
	st.waker = w
	return Readiness{}, false
}

// Next returns a future for the next readiness event.
func (s *Stream) Next() Future[Readiness] {
	return FutureFunc[Readiness](s.PollNext)
}

// Pending returns the number of queued, unpolled events.
func (s *Stream) Pending() int {
	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.items.Length()
}

// Close releases the stream: queued events are discarded, and the loop stops
// watching the handle at its next readiness event.
func (s *Stream) Close() {
	s.state.release()
}
