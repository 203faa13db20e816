package mainloop

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
)

var loopIDCounter atomic.Uint64

// Loop is a single-goroutine main loop, owning one [Backend].
//
// A Loop is confined to the goroutine that called [New]: Run, RunOne and
// the registration methods must be called from it. [Loop.Quit],
// [Loop.Terminated], [Loop.State], [Loop.ID] and [Loop.Goroutine] are safe
// for concurrent use, and [CallThread] reaches the loop from elsewhere.
type Loop struct {
	backend  Backend
	injector Injector
	boundary *Boundary
	logger   *logiface.Logger[logiface.Event]

	owner  uint64
	id     uint64
	nextID CallbackID

	state      runState
	terminated atomic.Bool
	closed     atomic.Bool

	lockedThread bool
}

// New creates a loop owned by the calling goroutine. It fails with
// [ErrTooManyMainLoops] if the goroutine already owns one, or with a
// [*BackendError] if the backend cannot be constructed.
func New(opts ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	gid := getGoroutineID()
	if threads.owned(gid) {
		return nil, ErrTooManyMainLoops
	}

	l := &Loop{
		id:       loopIDCounter.Add(1),
		owner:    gid,
		logger:   cfg.logger,
		boundary: NewBoundary(cfg.logger),
	}

	l.backend, l.injector, err = cfg.backend(l.boundary)
	if err != nil {
		err = wrapBackendError("new", err)
		l.logger.Err().
			Err(err).
			Uint64("loop", l.id).
			Log("mainloop: failed to construct backend")
		return nil, err
	}

	if err := threads.register(gid, l, l.injector); err != nil {
		_ = l.backend.Close()
		return nil, err
	}

	if cfg.lockOSThread {
		runtime.LockOSThread()
		l.lockedThread = true
	}

	return l, nil
}

// ID returns the loop's process-unique identifier.
func (l *Loop) ID() uint64 { return l.id }

// Goroutine returns the identifier of the owning goroutine, as accepted by
// [CallThread].
func (l *Loop) Goroutine() uint64 { return l.owner }

// State returns the current state of the loop.
func (l *Loop) State() LoopState {
	switch {
	case l.closed.Load():
		return StateClosed
	case l.terminated.Load():
		if l.state.Load() == StateRunning {
			return StateTerminating
		}
		return StateTerminated
	default:
		return l.state.Load()
	}
}

// Terminated reports whether the loop has been asked to stop.
func (l *Loop) Terminated() bool { return l.terminated.Load() }

// Quit requests termination: Run returns after the current callback, and
// RunOne no longer makes progress. Termination is permanent. Quit may be
// called from any goroutine; a loop blocked in a wait is woken.
func (l *Loop) Quit() {
	if l.terminated.Swap(true) {
		return
	}
	if getGoroutineID() != l.owner {
		if err := l.injector.Inject(func() {}); err != nil {
			l.logger.Debug().
				Err(err).
				Uint64("loop", l.id).
				Log("mainloop: failed to wake loop for quit")
		}
	}
}

// check validates that registration is permitted from the calling goroutine.
func (l *Loop) check() error {
	if l.closed.Load() {
		return ErrLoopClosed
	}
	if getGoroutineID() != l.owner {
		return ErrWrongGoroutine
	}
	return nil
}

// Push registers cb with the backend, returning its id.
func (l *Loop) Push(cb *Callback) (CallbackID, error) {
	if cb == nil {
		return 0, ErrNilCallback
	}
	if err := l.check(); err != nil {
		return 0, err
	}
	l.nextID++
	id := l.nextID
	if err := l.backend.Push(id, cb); err != nil {
		return 0, wrapBackendError("push", err)
	}
	return id, nil
}

// CallAsap registers fn to run once, as soon as possible.
func (l *Loop) CallAsap(fn func()) (CallbackID, error) {
	return l.Push(Asap(fn))
}

// CallAfter registers fn to run once, after d.
func (l *Loop) CallAfter(d time.Duration, fn func()) (CallbackID, error) {
	return l.Push(After(d, fn))
}

// CallInterval registers fn to run every d, until it returns false.
func (l *Loop) CallInterval(d time.Duration, fn func() bool) (CallbackID, error) {
	return l.Push(Interval(d, fn))
}

// CallIO registers src to receive readiness events. The default backend
// returns [ErrUnsupported].
func (l *Loop) CallIO(src IOSource) (CallbackID, error) {
	return l.Push(IO(src))
}

// Cancel removes a pending callback, returning it if it had not yet fired.
// A cancelled callback is never fired, or finished, by the loop.
//
// Cancel panics with [ErrWrongGoroutine] if called from a goroutine other
// than the owner.
func (l *Loop) Cancel(id CallbackID) (*Callback, bool) {
	if l.closed.Load() {
		return nil, false
	}
	if getGoroutineID() != l.owner {
		panic(ErrWrongGoroutine)
	}
	return l.backend.Cancel(id)
}

// RunOne drives one iteration of the backend. With wait set, it blocks until
// a callback fires, a deadline elapses, or an injection arrives.
//
// It returns false once the loop is terminated or closed, in which case it
// does nothing. A panic raised by a callback propagates to the caller with
// its original value, and the loop remains usable.
func (l *Loop) RunOne(wait bool) bool {
	return l.enter(func() {
		l.backend.RunOne(wait)
	})
}

// Run calls RunOne(true) until the loop is terminated.
func (l *Loop) Run() {
	for l.RunOne(true) {
	}
}

// enter runs fn with the loop marked as running on its goroutine, so the
// free functions find it, then re-raises any panic the backend boundary
// caught.
func (l *Loop) enter(fn func()) bool {
	if l.closed.Load() || l.terminated.Load() {
		return false
	}
	if getGoroutineID() != l.owner {
		panic(ErrWrongGoroutine)
	}
	if !l.state.TryTransition(StateIdle, StateRunning) {
		panic(ErrReentrantRun)
	}

	func() {
		var ok bool
		defer func() {
			l.state.Store(StateIdle)
			if !ok {
				l.boundary.discard()
			}
		}()
		fn()
		ok = true
	}()

	l.boundary.Rethrow()

	return !l.terminated.Load()
}

// Close releases the loop: its dispatch registry entry is removed, and the
// backend is closed, discarding pending callbacks. It must be called from
// the owning goroutine, and not while running. Subsequent calls return
// [ErrLoopClosed].
func (l *Loop) Close() error {
	if getGoroutineID() != l.owner {
		return ErrWrongGoroutine
	}
	if l.state.Load() == StateRunning {
		return ErrLoopRunning
	}
	if !l.closed.CompareAndSwap(false, true) {
		return ErrLoopClosed
	}

	threads.unregister(l.owner, l)

	err := l.backend.Close()
	if err != nil {
		err = wrapBackendError("close", err)
	}

	if l.lockedThread {
		l.lockedThread = false
		runtime.UnlockOSThread()
	}

	l.logger.Debug().
		Uint64("loop", l.id).
		Call(func(b *logiface.Builder[logiface.Event]) {
			if err != nil {
				b.Err(err)
			}
		}).
		Log("mainloop: closed")

	return err
}
