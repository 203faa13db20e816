package mainloop

// Backend is the reactor that physically waits for and reports due
// callbacks. A backend is created once per [Loop], is only ever used from
// that loop's goroutine, and is closed with it.
type Backend interface {
	// RunOne drives exactly one iteration, and reports whether a callback
	// fired. With wait set it may block until a deadline elapses or an
	// injection arrives, returning false if nothing fired.
	RunOne(wait bool) bool

	// Push registers cb under id. It fails with [ErrUnsupported] if the
	// backend cannot represent the callback's shape, and with
	// [ErrDurationTooLong] if a timer duration exceeds its native range.
	Push(id CallbackID, cb *Callback) error

	// Cancel removes the registration for id, returning the callback if it
	// was still pending.
	Cancel(id CallbackID) (*Callback, bool)

	// Close releases native resources. Pending callbacks are discarded.
	Close() error
}

// Injector hands a function to a loop from any goroutine, waking the loop if
// it is blocked. The function runs on the loop goroutine as an Asap-shaped
// callback.
type Injector interface {
	Inject(fn func()) error
}

// BackendFactory constructs a backend and its injector. Backends that call
// user code from frames that must not be unwound should run it through b.
type BackendFactory func(b *Boundary) (Backend, Injector, error)
