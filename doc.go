// Package mainloop provides a portable, single-goroutine main loop: deferred,
// timed, repeating and I/O readiness callbacks, drained cooperatively from one
// call site.
//
// # Architecture
//
// A [Loop] owns exactly one [Backend], the component that physically waits
// for the next due callback. The default backend is a software timer queue
// ([TimerQueue]) that needs nothing from the platform; it supports every
// callback shape except I/O. Native backends (see the epoll sub-package) add
// I/O readiness on top of the same timer semantics.
//
// Callbacks come in four shapes, see [Callback]:
//   - Asap: run once, as soon as possible ([Loop.CallAsap])
//   - After: run once, after a duration ([Loop.CallAfter])
//   - Interval: run repeatedly at a fixed period ([Loop.CallInterval])
//   - IO: run whenever a handle becomes ready ([Loop.CallIO])
//
// Firing is two-phase: [Callback.Call] may run many times and reports
// whether the callback stays registered, [Callback.Finish] runs once, after
// the backend has forgotten the registration.
//
// # Goroutine Confinement
//
// A loop belongs to the goroutine that created it, and at most one loop may
// exist per goroutine at a time. Run, RunOne and every registration method
// must be called from that goroutine. The single sanctioned way to reach a
// loop from elsewhere is [CallThread], which hands a function to the owning
// goroutine and wakes it if it is blocked.
//
// While a loop is running, the free functions [CallAsap], [CallAfter],
// [CallInterval], [CallIO], [Cancel] and [Terminate] locate it implicitly.
//
// # Panics
//
// A panic raised by a callback is observed by the caller of [Loop.Run] or
// [Loop.RunOne] with its original value. Backends that dispatch from frames
// that must not be unwound use a [Boundary] to defer the panic until control
// is back inside RunOne.
//
// # Async
//
// [Executor] multiplexes poll-based computations ([Future]) onto a loop.
// [Delay] and [Stream] bridge timer and I/O registrations into that model,
// and [BlockOn] drives one computation to completion.
//
// # Usage
//
//	loop, err := mainloop.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer loop.Close()
//
//	_, _ = loop.CallAfter(100*time.Millisecond, func() {
//	    fmt.Println("Hello after 100ms")
//	    mainloop.Terminate()
//	})
//
//	loop.Run()
package mainloop
