package mainloop

import (
	"runtime"
)

// CurrentGoroutineID returns the identifier of the calling goroutine, as
// accepted by [CallThread] and reported by [Loop.Goroutine].
func CurrentGoroutineID() uint64 {
	return getGoroutineID()
}

// getGoroutineID parses the "goroutine N [...]" header of the current stack.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
