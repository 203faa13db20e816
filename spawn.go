package mainloop

import (
	"sync/atomic"
)

// SpawnLocal runs f directly on the loop running on the calling goroutine,
// without an [Executor]. f is first polled from an Asap callback, and is
// polled again (via [CallThread]) each time it is woken, until it completes.
func SpawnLocal(f Future[struct{}]) error {
	l, err := current()
	if err != nil {
		return err
	}
	if l.Terminated() {
		return ErrLoopTerminated
	}
	t := &localTask{loop: l, future: f}
	t.waker = WakerFunc(t.wake)
	t.scheduled.Store(true)
	if _, err := l.CallAsap(t.poll); err != nil {
		return err
	}
	return nil
}

type localTask struct {
	loop      *Loop
	future    Future[struct{}]
	waker     Waker
	scheduled atomic.Bool
}

func (t *localTask) poll() {
	t.scheduled.Store(false)
	if t.future == nil {
		return
	}
	if _, done := t.future.Poll(t.waker); done {
		t.future = nil
	}
}

func (t *localTask) wake() {
	if !t.scheduled.CompareAndSwap(false, true) {
		return
	}
	if err := CallThread(t.loop.owner, t.poll); err != nil {
		t.scheduled.Store(false)
		t.loop.logger.Debug().
			Err(err).
			Uint64("loop", t.loop.id).
			Log("mainloop: dropped wake for local task")
	}
}
