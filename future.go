package mainloop

// Waker marks a suspended computation as ready to be polled again. Wake is
// safe to call from any goroutine, any number of times. The zero value is a
// valid no-op waker.
type Waker struct {
	w waker
}

type waker interface {
	wake()
}

type wakerFunc func()

func (f wakerFunc) wake() { f() }

// WakerFunc returns a [Waker] that calls fn.
func WakerFunc(fn func()) Waker {
	if fn == nil {
		return Waker{}
	}
	return Waker{w: wakerFunc(fn)}
}

// Wake schedules the associated computation to be polled.
func (w Waker) Wake() {
	if w.w != nil {
		w.w.wake()
	}
}

// Future is a poll-based asynchronous computation. Poll returns the result
// and true once complete. Otherwise it returns false, having arranged for w
// (the waker passed to the most recent poll) to be woken when progress is
// possible. A completed future must not be polled again.
type Future[T any] interface {
	Poll(w Waker) (T, bool)
}

// FutureFunc adapts a function into a [Future].
type FutureFunc[T any] func(w Waker) (T, bool)

// Poll implements [Future].
func (f FutureFunc[T]) Poll(w Waker) (T, bool) { return f(w) }

// Ready returns a future that completes immediately with v.
func Ready[T any](v T) Future[T] {
	return FutureFunc[T](func(Waker) (T, bool) { return v, true })
}

// Lazy returns a future that completes, on its first poll, with the result
// of fn.
func Lazy[T any](fn func() T) Future[T] {
	return FutureFunc[T](func(Waker) (T, bool) { return fn(), true })
}

// Map returns a future that completes with fn applied to the result of f.
func Map[T, U any](f Future[T], fn func(T) U) Future[U] {
	return FutureFunc[U](func(w Waker) (U, bool) {
		v, ok := f.Poll(w)
		if !ok {
			var zero U
			return zero, false
		}
		return fn(v), true
	})
}

// Then returns a future that runs f, then the future fn returns for its
// result.
func Then[T, U any](f Future[T], fn func(T) Future[U]) Future[U] {
	return &thenFuture[T, U]{first: f, fn: fn}
}

type thenFuture[T, U any] struct {
	first  Future[T]
	fn     func(T) Future[U]
	second Future[U]
}

func (x *thenFuture[T, U]) Poll(w Waker) (U, bool) {
	if x.second == nil {
		v, ok := x.first.Poll(w)
		if !ok {
			var zero U
			return zero, false
		}
		x.first = nil
		x.second = x.fn(v)
	}
	return x.second.Poll(w)
}
