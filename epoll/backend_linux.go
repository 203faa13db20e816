//go:build linux

package epoll

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/joeycumines/go-mainloop"
	"golang.org/x/sys/unix"
)

// Standard errors.
var (
	ErrFDAlreadyRegistered = errors.New("epoll: fd already registered")
	ErrFDOutOfRange        = errors.New("epoll: fd out of range")
)

// MaxTimeoutMillis is the longest timer duration, in milliseconds, that the
// backend accepts.
const MaxTimeoutMillis = math.MaxInt32

type ioEntry struct {
	cb *mainloop.Callback
	fd int32
}

type backend struct {
	boundary *mainloop.Boundary
	timers   *mainloop.TimerQueue
	inject   *mainloop.InjectQueue

	fds map[int32]mainloop.CallbackID
	ios map[mainloop.CallbackID]*ioEntry

	eventBuf [64]unix.EpollEvent
	wakeBuf  [8]byte

	// fdMu guards wakefd against Close, for signal
	fdMu   sync.RWMutex
	epfd   int
	wakefd int

	wakePending atomic.Bool
	closed      bool
}

var _ mainloop.Backend = (*backend)(nil)

// New is a [mainloop.BackendFactory] for the epoll backend.
func New(b *mainloop.Boundary) (mainloop.Backend, mainloop.Injector, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, nil, &mainloop.BackendError{Op: "epoll_create1", Err: err}
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, nil, &mainloop.BackendError{Op: "eventfd", Err: err}
	}

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakefd),
	}); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, nil, &mainloop.BackendError{Op: "epoll_ctl", Err: err}
	}

	x := &backend{
		boundary: b,
		timers:   mainloop.NewTimerQueue(),
		fds:      make(map[int32]mainloop.CallbackID),
		ios:      make(map[mainloop.CallbackID]*ioEntry),
		epfd:     epfd,
		wakefd:   wakefd,
	}
	x.inject = mainloop.NewInjectQueue(x.signal)

	return x, x.inject, nil
}

// signal writes to the eventfd, at most once per drain.
func (x *backend) signal() {
	if !x.wakePending.CompareAndSwap(false, true) {
		return
	}
	x.fdMu.RLock()
	defer x.fdMu.RUnlock()
	if x.wakefd < 0 {
		return
	}
	// native endianness
	var one uint64 = 1
	buf := (*[8]byte)(unsafe.Pointer(&one))[:]
	if _, err := unix.Write(x.wakefd, buf); err != nil {
		x.wakePending.Store(false)
	}
}

func (x *backend) drainWakeFd() {
	for {
		if _, err := unix.Read(x.wakefd, x.wakeBuf[:]); err != nil {
			break
		}
	}
	x.wakePending.Store(false)
}

func (x *backend) RunOne(wait bool) bool {
	if fn, ok := x.inject.Pop(); ok {
		fn()
		return true
	}

	if x.timers.RunDue(x.timers.Now()) {
		return true
	}

	timeout := 0
	if wait {
		timeout = x.timeoutMillis()
	}

	n, err := unix.EpollWait(x.epfd, x.eventBuf[:], timeout)
	if err != nil {
		if err != unix.EINTR {
			x.boundary.Logger().Err().
				Limit().
				Err(err).
				Log("epoll: wait failed")
		}
		return false
	}

	return x.dispatch(n)
}

// timeoutMillis returns the epoll_wait timeout until the earliest timer,
// rounded up, or -1 if there are none.
func (x *backend) timeoutMillis() int {
	d, ok := x.timers.Timeout()
	if !ok {
		return -1
	}
	ms, err := mainloop.DurationMillis(d, MaxTimeoutMillis)
	if err != nil {
		return MaxTimeoutMillis
	}
	return int(ms)
}

// dispatch delivers the first n events. Handlers run inside the boundary;
// dispatch stops at the first panic, leaving the rest of the batch to be
// reported again.
func (x *backend) dispatch(n int) bool {
	var fired bool
	for i := 0; i < n; i++ {
		ev := x.eventBuf[i]
		fd := ev.Fd

		if int(fd) == x.wakefd {
			x.drainWakeFd()
			continue
		}

		id, ok := x.fds[fd]
		if !ok {
			// cancelled earlier in this batch
			continue
		}
		entry := x.ios[id]

		r := readiness(ev.Events, int(fd))
		var keep bool
		fired = true
		ok = x.boundary.Protect(func() {
			keep = entry.cb.Call(r)
		})

		if x.ios[id] != entry {
			// cancelled by its own handler
			if !ok {
				break
			}
			continue
		}

		if !ok {
			x.remove(id, entry)
			break
		}

		if !keep {
			x.remove(id, entry)
			if !x.boundary.Protect(entry.cb.Finish) {
				break
			}
		}
	}
	return fired
}

func readiness(events uint32, fd int) mainloop.Readiness {
	if events&unix.EPOLLERR != 0 {
		return mainloop.Readiness{Err: pendingError(fd)}
	}
	return mainloop.Readiness{Dir: mainloop.DirectionOf(
		events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLRDHUP) != 0,
		events&unix.EPOLLOUT != 0,
	)}
}

// pendingError returns the pending socket error for fd, or a generic I/O
// error for descriptors that are not sockets.
func pendingError(fd int) error {
	if v, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR); err == nil && v != 0 {
		return &mainloop.BackendError{Op: "poll", Err: unix.Errno(v)}
	}
	return &mainloop.BackendError{Op: "poll", Err: unix.EIO}
}

func directionToEpoll(dir mainloop.Direction) uint32 {
	var events uint32
	if dir.Readable() {
		events |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if dir.Writable() {
		events |= unix.EPOLLOUT
	}
	return events
}

func (x *backend) Push(id mainloop.CallbackID, cb *mainloop.Callback) error {
	if x.closed {
		return mainloop.ErrLoopClosed
	}
	if cb.Kind() != mainloop.KindIO {
		d, _ := cb.Duration()
		if _, err := mainloop.DurationMillis(d, MaxTimeoutMillis); err != nil {
			return err
		}
		return x.timers.Push(id, cb)
	}

	src, ok := cb.Source()
	if !ok {
		return mainloop.ErrNilCallback
	}
	if src.Fd() > math.MaxInt32 {
		return ErrFDOutOfRange
	}
	fd := int32(src.Fd())
	if _, ok := x.fds[fd]; ok {
		return ErrFDAlreadyRegistered
	}
	if err := unix.EpollCtl(x.epfd, unix.EPOLL_CTL_ADD, int(fd), &unix.EpollEvent{
		Events: directionToEpoll(src.Direction()),
		Fd:     fd,
	}); err != nil {
		return &mainloop.BackendError{Op: "epoll_ctl", Err: err}
	}
	x.fds[fd] = id
	x.ios[id] = &ioEntry{cb: cb, fd: fd}
	return nil
}

// remove forgets an IO registration. The descriptor may already be closed,
// so EPOLL_CTL_DEL failures are ignored.
func (x *backend) remove(id mainloop.CallbackID, entry *ioEntry) {
	delete(x.ios, id)
	if x.fds[entry.fd] == id {
		delete(x.fds, entry.fd)
	}
	_ = unix.EpollCtl(x.epfd, unix.EPOLL_CTL_DEL, int(entry.fd), nil)
}

func (x *backend) Cancel(id mainloop.CallbackID) (*mainloop.Callback, bool) {
	if entry, ok := x.ios[id]; ok {
		x.remove(id, entry)
		return entry.cb, true
	}
	return x.timers.Cancel(id)
}

func (x *backend) Close() error {
	if x.closed {
		return nil
	}
	x.closed = true

	x.inject.Close()
	for id, entry := range x.ios {
		x.remove(id, entry)
	}
	x.timers.Drain()

	x.fdMu.Lock()
	defer x.fdMu.Unlock()
	var errs []error
	if err := unix.Close(x.wakefd); err != nil {
		errs = append(errs, &mainloop.BackendError{Op: "close", Err: err})
	}
	x.wakefd = -1
	if err := unix.Close(x.epfd); err != nil {
		errs = append(errs, &mainloop.BackendError{Op: "close", Err: err})
	}
	x.epfd = -1
	return errors.Join(errs...)
}
