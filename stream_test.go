package mainloop

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIOBackend is the software backend plus IO callbacks, with readiness
// injected by the test.
type fakeIOBackend struct {
	*softwareBackend
	ios      map[CallbackID]*Callback
	fds      map[uintptr]CallbackID
	events   []fakeEvent
	finished int
}

type fakeEvent struct {
	r  Readiness
	fd uintptr
}

func (x *fakeIOBackend) factory(*Boundary) (Backend, Injector, error) {
	x.softwareBackend = newSoftwareBackend(time.Now)
	x.ios = make(map[CallbackID]*Callback)
	x.fds = make(map[uintptr]CallbackID)
	return x, x.inject, nil
}

func (x *fakeIOBackend) ready(fd uintptr, r Readiness) {
	x.events = append(x.events, fakeEvent{r: r, fd: fd})
}

func (x *fakeIOBackend) RunOne(wait bool) bool {
	for len(x.events) != 0 {
		ev := x.events[0]
		x.events = x.events[1:]
		id, ok := x.fds[ev.fd]
		if !ok {
			continue
		}
		cb := x.ios[id]
		if !cb.Call(ev.r) {
			delete(x.ios, id)
			delete(x.fds, ev.fd)
			cb.Finish()
			x.finished++
		}
		return true
	}
	return x.softwareBackend.RunOne(wait)
}

func (x *fakeIOBackend) Push(id CallbackID, cb *Callback) error {
	if src, ok := cb.Source(); ok {
		if _, dup := x.fds[src.Fd()]; dup {
			return errors.New("fd already registered")
		}
		x.ios[id] = cb
		x.fds[src.Fd()] = id
		return nil
	}
	return x.softwareBackend.Push(id, cb)
}

func (x *fakeIOBackend) Cancel(id CallbackID) (*Callback, bool) {
	if cb, ok := x.ios[id]; ok {
		src, _ := cb.Source()
		delete(x.ios, id)
		delete(x.fds, src.Fd())
		return cb, true
	}
	return x.softwareBackend.Cancel(id)
}

func TestStream_deliversInOrder(t *testing.T) {
	be := new(fakeIOBackend)
	l := newTestLoop(t, WithBackend(be.factory))
	e := NewExecutor(l)

	s := NewStream(5, DirRead)
	var got []Readiness
	e.Spawn(FutureFunc[struct{}](func(w Waker) (struct{}, bool) {
		for {
			r, ok := s.PollNext(w)
			if !ok {
				return struct{}{}, false
			}
			got = append(got, r)
			if len(got) == 3 {
				Terminate()
				return struct{}{}, true
			}
		}
	}))

	// first poll registers
	assert.True(t, e.RunOne(false))
	require.Len(t, be.ios, 1)

	ioErr := errors.New("connection reset")
	be.ready(5, Readiness{Dir: DirRead})
	be.ready(5, Readiness{Err: ioErr})
	be.ready(5, Readiness{Dir: DirBoth})
	e.Run()

	require.Len(t, got, 3)
	assert.Equal(t, DirRead, got[0].Dir)
	assert.ErrorIs(t, got[1].Err, ioErr)
	assert.Equal(t, DirBoth, got[2].Dir)
	assert.Equal(t, 0, s.Pending())
}

func TestStream_queuesBetweenPolls(t *testing.T) {
	be := new(fakeIOBackend)
	l := newTestLoop(t, WithBackend(be.factory))

	s := NewStream(9, DirWrite)
	var wakes int
	w := WakerFunc(func() { wakes++ })

	_, err := l.CallAsap(func() {
		_, ok := s.PollNext(w)
		assert.False(t, ok)
	})
	require.NoError(t, err)
	assert.True(t, l.RunOne(false))
	require.Len(t, be.ios, 1)

	be.ready(9, Readiness{Dir: DirWrite})
	be.ready(9, Readiness{Dir: DirWrite})
	assert.True(t, l.RunOne(false))
	assert.True(t, l.RunOne(false))
	assert.Equal(t, 2, wakes)
	assert.Equal(t, 2, s.Pending())

	r, ok := s.PollNext(w)
	require.True(t, ok)
	assert.Equal(t, DirWrite, r.Dir)
	_, ok = s.PollNext(w)
	assert.True(t, ok)
	_, ok = s.PollNext(w)
	assert.False(t, ok)
}

func TestStream_closeStopsAtNextEvent(t *testing.T) {
	be := new(fakeIOBackend)
	l := newTestLoop(t, WithBackend(be.factory))

	s := NewStream(4, DirRead)
	_, err := l.CallAsap(func() { s.PollNext(Waker{}) })
	require.NoError(t, err)
	assert.True(t, l.RunOne(false))
	require.Len(t, be.ios, 1)

	be.ready(4, Readiness{Dir: DirRead})
	assert.True(t, l.RunOne(false))
	assert.Equal(t, 1, s.Pending())

	s.Close()
	assert.Equal(t, 0, s.Pending(), "close discards queued events")
	assert.Len(t, be.ios, 1, "registration outlives the handle")

	be.ready(4, Readiness{Dir: DirRead})
	assert.True(t, l.RunOne(false))
	assert.Empty(t, be.ios)
	assert.Equal(t, 1, be.finished)
}

func TestStream_releasedWhenUnreachable(t *testing.T) {
	be := new(fakeIOBackend)
	l := newTestLoop(t, WithBackend(be.factory))

	st := func() *streamState {
		s := NewStream(6, DirRead)
		_, err := l.CallAsap(func() { s.PollNext(Waker{}) })
		require.NoError(t, err)
		assert.True(t, l.RunOne(false))
		return s.state
	}()

	assert.Eventually(t, func() bool {
		runtime.GC()
		st.mu.Lock()
		defer st.mu.Unlock()
		return !st.alive
	}, 5*time.Second, 10*time.Millisecond)

	be.ready(6, Readiness{Dir: DirRead})
	assert.True(t, l.RunOne(false))
	assert.Empty(t, be.ios)
}

func TestStream_registrationErrorIsSticky(t *testing.T) {
	e := newTestExecutor(t)

	s := NewStream(3, DirRead)
	r, ok := BlockOn(e, s.Next())
	require.True(t, ok)
	assert.ErrorIs(t, r.Err, ErrUnsupported)

	r, ok = s.PollNext(Waker{})
	assert.True(t, ok)
	assert.ErrorIs(t, r.Err, ErrUnsupported)
}

func TestStream_noMainLoop(t *testing.T) {
	s := NewStream(3, DirRead)
	r, ok := s.PollNext(Waker{})
	require.True(t, ok)
	assert.ErrorIs(t, r.Err, ErrNoMainLoop)
}
