package mainloop

import (
	"sync"
)

// threads is the process-wide registry of loops, keyed by the goroutine that
// owns each one. It is the only global mutable state in this package.
var threads = newThreadRegistry()

type threadRegistry struct {
	entries map[uint64]*threadEntry
	mu      sync.RWMutex
}

type threadEntry struct {
	injector Injector
	loop     *Loop
}

func newThreadRegistry() *threadRegistry {
	return &threadRegistry{entries: make(map[uint64]*threadEntry)}
}

// register installs l for gid. It fails if gid already owns a loop.
func (r *threadRegistry) register(gid uint64, l *Loop, injector Injector) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[gid]; ok {
		return ErrTooManyMainLoops
	}
	r.entries[gid] = &threadEntry{injector: injector, loop: l}
	return nil
}

// owned reports whether gid currently owns a loop.
func (r *threadRegistry) owned(gid uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[gid]
	return ok
}

// unregister removes the entry for gid, if it still belongs to l.
func (r *threadRegistry) unregister(gid uint64, l *Loop) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[gid]; ok && e.loop == l {
		delete(r.entries, gid)
	}
}

// lookup returns the entry for the loop owned by gid.
func (r *threadRegistry) lookup(gid uint64) (*threadEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[gid]
	return e, ok
}

// running returns the loop owned by gid, if it is currently inside Run or
// RunOne.
func (r *threadRegistry) running(gid uint64) *Loop {
	r.mu.RLock()
	e, ok := r.entries[gid]
	r.mu.RUnlock()
	if !ok || e.loop.state.Load() != StateRunning {
		return nil
	}
	return e.loop
}
