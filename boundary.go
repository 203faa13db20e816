package mainloop

import (
	"runtime/debug"

	"github.com/joeycumines/logiface"
)

// Boundary contains panics raised by user code that a backend invokes from a
// frame that must not be unwound (a native dispatch trampoline, or the
// middle of a batch whose bookkeeping would otherwise be left half done).
//
// Protect catches the panic into a pending slot, and the loop re-raises it
// with [Boundary.Rethrow] once control is back in a safe frame. Only the
// first panic is kept: later panics, caught while one is already pending,
// are logged and dropped.
//
// A Boundary belongs to one loop, and must only be used on its goroutine.
type Boundary struct {
	logger  *logiface.Logger[logiface.Event]
	pending *caughtPanic
}

type caughtPanic struct {
	value any
	stack []byte
}

// NewBoundary returns a boundary that logs to logger, which may be nil.
func NewBoundary(logger *logiface.Logger[logiface.Event]) *Boundary {
	return &Boundary{logger: logger}
}

// Logger returns the logger the boundary was constructed with.
func (b *Boundary) Logger() *logiface.Logger[logiface.Event] {
	return b.logger
}

// Protect runs fn, reporting false if it panicked. The panic is kept for
// Rethrow, unless one is already pending.
func (b *Boundary) Protect(fn func()) (ok bool) {
	defer func() {
		if ok {
			return
		}
		v := recover()
		if v == nil {
			// runtime.Goexit
			return
		}
		if b.pending == nil {
			b.pending = &caughtPanic{value: v, stack: debug.Stack()}
			return
		}
		b.logger.Err().
			Limit().
			Any("panic", v).
			Log("mainloop: dropped panic raised while another was pending")
	}()
	fn()
	return true
}

// Pending reports whether a caught panic is waiting to be re-raised.
func (b *Boundary) Pending() bool {
	return b.pending != nil
}

// Rethrow re-raises the pending panic, if any, with its original value. The
// slot is cleared first, so each caught panic is raised exactly once.
func (b *Boundary) Rethrow() {
	p := b.pending
	if p == nil {
		return
	}
	b.pending = nil
	b.logger.Debug().
		Any("panic", p.value).
		Str("stack", string(p.stack)).
		Log("mainloop: re-raising panic caught at backend boundary")
	panic(p.value)
}

// discard drops the pending panic, used when a different panic is already
// unwinding through the loop.
func (b *Boundary) discard() {
	p := b.pending
	if p == nil {
		return
	}
	b.pending = nil
	b.logger.Err().
		Limit().
		Any("panic", p.value).
		Log("mainloop: dropped panic caught at backend boundary")
}
