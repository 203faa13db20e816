package mainloop

import (
	"time"
)

// CallbackID identifies a pending callback on one loop. It is never zero,
// and never reused while the original registration is pending.
type CallbackID uint64

// Kind is the shape of a [Callback].
type Kind uint8

const (
	// KindAsap is a one-shot callable with no timing.
	KindAsap Kind = iota + 1
	// KindAfter is a one-shot callable plus a delay.
	KindAfter
	// KindInterval is a repeatable callable plus a fixed period.
	KindInterval
	// KindIO is an [IOSource] watched for readiness.
	KindIO
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindAsap:
		return "Asap"
	case KindAfter:
		return "After"
	case KindInterval:
		return "Interval"
	case KindIO:
		return "IO"
	default:
		return "Unknown"
	}
}

// Callback is a pending unit of work. Exactly one shape is active, as
// reported by [Callback.Kind].
//
// Backends fire a callback in two phases. [Callback.Call] borrows it and may
// run repeatedly; a true result keeps it registered. Once Call reports false
// (or the callback is one-shot), the backend forgets the registration and
// then calls [Callback.Finish], which is the only place a one-shot callable
// actually runs.
//
// Callbacks are confined to the loop goroutine.
type Callback struct {
	once   func()
	repeat func() bool
	source IOSource
	d      time.Duration
	kind   Kind
	done   bool
}

// Asap returns a one-shot callback that runs as soon as possible.
func Asap(fn func()) *Callback {
	return &Callback{kind: KindAsap, once: fn}
}

// After returns a one-shot callback that runs after d. Negative durations
// are treated as zero.
func After(d time.Duration, fn func()) *Callback {
	return &Callback{kind: KindAfter, once: fn, d: max(d, 0)}
}

// Interval returns a callback that runs every d until fn returns false.
// Negative periods are treated as zero.
func Interval(d time.Duration, fn func() bool) *Callback {
	return &Callback{kind: KindInterval, repeat: fn, d: max(d, 0)}
}

// IO returns a callback that delivers readiness events to src.
func IO(src IOSource) *Callback {
	return &Callback{kind: KindIO, source: src}
}

// Kind returns the shape of the callback.
func (c *Callback) Kind() Kind { return c.kind }

// Duration returns the delay (After) or period (Interval). The second
// result is false for the other shapes.
func (c *Callback) Duration() (time.Duration, bool) {
	switch c.kind {
	case KindAfter, KindInterval:
		return c.d, true
	default:
		return 0, false
	}
}

// Source returns the watched [IOSource] of an IO callback.
func (c *Callback) Source() (IOSource, bool) {
	if c.kind != KindIO || c.source == nil {
		return nil, false
	}
	return c.source, true
}

// Done reports whether [Callback.Finish] has run.
func (c *Callback) Done() bool { return c.done }

// Call is the repeatable firing phase. It returns true if the callback must
// stay registered. One-shot shapes always return false, without running.
// For IO callbacks, r is passed to the source's OnReady.
func (c *Callback) Call(r Readiness) bool {
	switch c.kind {
	case KindInterval:
		if c.repeat == nil {
			return false
		}
		return c.repeat()
	case KindIO:
		if c.source == nil {
			return false
		}
		return c.source.OnReady(r)
	default:
		return false
	}
}

// Finish is the terminal firing phase. It runs a one-shot callable, and
// releases everything the callback holds. Calls after the first do nothing.
func (c *Callback) Finish() {
	if c.done {
		return
	}
	fn := c.once
	c.once, c.repeat, c.source = nil, nil, nil
	c.done = true
	if fn != nil {
		fn()
	}
}

// DurationMillis converts d to whole milliseconds, rounding up, for backends
// whose native timers count milliseconds. It returns [ErrDurationTooLong] if
// the result exceeds limit.
func DurationMillis(d time.Duration, limit int64) (int64, error) {
	if d <= 0 {
		return 0, nil
	}
	ms := int64(d / time.Millisecond)
	if d%time.Millisecond != 0 {
		ms++
	}
	if ms > limit {
		return 0, ErrDurationTooLong
	}
	return ms, nil
}
