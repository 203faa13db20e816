package mainloop

import (
	"time"
)

// Current returns the loop running on the calling goroutine, or nil.
func Current() *Loop {
	return threads.running(getGoroutineID())
}

// Running reports whether a loop is running on the calling goroutine.
func Running() bool {
	return Current() != nil
}

func current() (*Loop, error) {
	if l := Current(); l != nil {
		return l, nil
	}
	return nil, ErrNoMainLoop
}

// CallAsap registers fn on the loop running on the calling goroutine.
func CallAsap(fn func()) (CallbackID, error) {
	l, err := current()
	if err != nil {
		return 0, err
	}
	return l.CallAsap(fn)
}

// CallAfter registers fn on the loop running on the calling goroutine.
func CallAfter(d time.Duration, fn func()) (CallbackID, error) {
	l, err := current()
	if err != nil {
		return 0, err
	}
	return l.CallAfter(d, fn)
}

// CallInterval registers fn on the loop running on the calling goroutine.
func CallInterval(d time.Duration, fn func() bool) (CallbackID, error) {
	l, err := current()
	if err != nil {
		return 0, err
	}
	return l.CallInterval(d, fn)
}

// CallIO registers src on the loop running on the calling goroutine.
func CallIO(src IOSource) (CallbackID, error) {
	l, err := current()
	if err != nil {
		return 0, err
	}
	return l.CallIO(src)
}

// Cancel cancels id on the loop running on the calling goroutine.
func Cancel(id CallbackID) (*Callback, bool) {
	l := Current()
	if l == nil {
		return nil, false
	}
	return l.Cancel(id)
}

// Terminate quits the loop running on the calling goroutine, reporting
// whether there was one.
func Terminate() bool {
	l := Current()
	if l == nil {
		return false
	}
	l.Quit()
	return true
}

// CallThread hands fn to the loop owned by goroutine gid, waking it if it is
// blocked. fn runs on that goroutine, as an Asap-shaped callback. It fails
// with [ErrNoMainLoop] if gid owns no loop.
//
// This is the only sanctioned way to act on a loop from another goroutine.
func CallThread(gid uint64, fn func()) error {
	if fn == nil {
		return ErrNilCallback
	}
	e, ok := threads.lookup(gid)
	if !ok {
		return ErrNoMainLoop
	}
	if err := e.injector.Inject(fn); err != nil {
		e.loop.logger.Warning().
			Err(err).
			Uint64("loop", e.loop.id).
			Uint64("goroutine", gid).
			Log("mainloop: cross-goroutine dispatch failed")
		return err
	}
	return nil
}
