package mainloop

import (
	"time"
)

// softwareBackend is the portable default backend: a [TimerQueue] plus an
// [InjectQueue], blocking on a timer or a wake channel. It does not support
// IO callbacks.
type softwareBackend struct {
	timers *TimerQueue
	inject *InjectQueue
	wake   chan struct{}
	timer  *time.Timer
}

var _ Backend = (*softwareBackend)(nil)

// NewSoftwareBackend is the default [BackendFactory].
func NewSoftwareBackend(*Boundary) (Backend, Injector, error) {
	b := newSoftwareBackend(time.Now)
	return b, b.inject, nil
}

func newSoftwareBackend(now func() time.Time) *softwareBackend {
	b := &softwareBackend{
		timers: newTimerQueue(now),
		wake:   make(chan struct{}, 1),
	}
	b.inject = NewInjectQueue(b.signal)
	return b
}

func (b *softwareBackend) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *softwareBackend) RunOne(wait bool) bool {
	if fn, ok := b.inject.Pop(); ok {
		fn()
		return true
	}

	if b.timers.RunDue(b.timers.Now()) {
		return true
	}

	if !wait {
		return false
	}

	d, ok := b.timers.Timeout()
	if !ok {
		<-b.wake
		return false
	}
	if d <= 0 {
		return false
	}

	if b.timer == nil {
		b.timer = time.NewTimer(d)
	} else {
		b.timer.Reset(d)
	}
	select {
	case <-b.wake:
		b.timer.Stop()
	case <-b.timer.C:
	}
	return false
}

func (b *softwareBackend) Push(id CallbackID, cb *Callback) error {
	return b.timers.Push(id, cb)
}

func (b *softwareBackend) Cancel(id CallbackID) (*Callback, bool) {
	return b.timers.Cancel(id)
}

func (b *softwareBackend) Close() error {
	b.inject.Close()
	b.timers.Drain()
	if b.timer != nil {
		b.timer.Stop()
	}
	return nil
}
