package mainloop

import (
	"time"
)

// DelayFuture completes at (or after) a deadline. It must be polled with a
// loop running on the calling goroutine, such as from an [Executor] task.
type DelayFuture struct {
	at    time.Time
	waker Waker
	armed bool
}

var _ Future[error] = (*DelayFuture)(nil)

// Delay returns a future that completes once at has passed. If registering
// the timer fails, the future completes with that error.
func Delay(at time.Time) *DelayFuture {
	return &DelayFuture{at: at}
}

// Sleep is Delay(time.Now().Add(d)).
func Sleep(d time.Duration) *DelayFuture {
	return Delay(time.Now().Add(d))
}

// Deadline returns the instant the delay completes at.
func (d *DelayFuture) Deadline() time.Time { return d.at }

// Poll implements [Future]. At most one timer is pending per delay; later
// polls only replace the waker it wakes.
func (d *DelayFuture) Poll(w Waker) (error, bool) {
	now := time.Now()
	if !now.Before(d.at) {
		return nil, true
	}
	d.waker = w
	if d.armed {
		return nil, false
	}
	if _, err := CallAfter(d.at.Sub(now), d.fire); err != nil {
		return err, true
	}
	d.armed = true
	return nil, false
}

func (d *DelayFuture) fire() {
	d.armed = false
	d.waker.Wake()
}
