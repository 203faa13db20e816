// Package epoll provides an I/O capable [mainloop.Backend] for Linux, built on
// epoll(7) and eventfd(2).
//
// Timer-shaped callbacks are scheduled by a [mainloop.TimerQueue], and the
// epoll wait timeout is derived from its earliest deadline, rounded up to
// whole milliseconds. Timer durations longer than math.MaxInt32 milliseconds
// are rejected with [mainloop.ErrDurationTooLong].
//
// IO-shaped callbacks are registered level-triggered, one registration per
// file descriptor. Hangups are reported as read readiness, and error
// conditions as a [mainloop.Readiness] carrying the pending socket error.
//
// Usage:
//
//	loop, err := mainloop.New(mainloop.WithBackend(epoll.New))
//
// On other platforms, [New] fails with [mainloop.ErrUnsupported].
package epoll
