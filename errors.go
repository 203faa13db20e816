package mainloop

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrTooManyMainLoops is returned by [New] when the calling goroutine
	// already owns a loop.
	ErrTooManyMainLoops = errors.New("mainloop: too many main loops on this goroutine")

	// ErrNoMainLoop is returned when no loop is running (or, for
	// [CallThread], registered) on the relevant goroutine.
	ErrNoMainLoop = errors.New("mainloop: no main loop")

	// ErrUnsupported is returned when a backend cannot represent a callback
	// shape, or is not available on this platform.
	ErrUnsupported = errors.New("mainloop: unsupported by backend")

	// ErrDurationTooLong is returned when a timer duration exceeds what the
	// backend can represent.
	ErrDurationTooLong = errors.New("mainloop: duration too long")

	// ErrReentrantRun is the panic value used when a loop is run from
	// within one of its own callbacks.
	ErrReentrantRun = errors.New("mainloop: reentrant call to Run")

	// ErrWrongGoroutine is returned (or, from Run and RunOne, panicked) when
	// a loop is used from a goroutine other than its owner.
	ErrWrongGoroutine = errors.New("mainloop: loop used from a goroutine that does not own it")

	// ErrLoopRunning is returned by [Loop.Close] while the loop is running.
	ErrLoopRunning = errors.New("mainloop: loop is running")

	// ErrLoopClosed is returned when operations are attempted on a closed loop.
	ErrLoopClosed = errors.New("mainloop: loop has been closed")

	// ErrLoopTerminated is returned when work is handed to a loop that has
	// already been asked to terminate, and so would never run it.
	ErrLoopTerminated = errors.New("mainloop: loop has been terminated")

	// ErrNilCallback is returned when registering a nil [Callback].
	ErrNilCallback = errors.New("mainloop: nil callback")
)

// BackendError wraps an opaque platform error raised by a [Backend].
type BackendError struct {
	Err error
	Op  string
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("mainloop: backend: %v", e.Err)
	}
	return fmt.Sprintf("mainloop: backend %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *BackendError) Unwrap() error {
	return e.Err
}

// wrapBackendError leaves sentinel errors of this package untouched, so
// callers can match them directly.
func wrapBackendError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrUnsupported),
		errors.Is(err, ErrDurationTooLong),
		errors.Is(err, ErrLoopClosed):
		return err
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Op: op, Err: err}
}
