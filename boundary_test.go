package mainloop

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundary_protect(t *testing.T) {
	b := NewBoundary(nil)

	assert.True(t, b.Protect(func() {}))
	assert.False(t, b.Pending())

	assert.False(t, b.Protect(func() { panic("boom") }))
	assert.True(t, b.Pending())

	assert.PanicsWithValue(t, "boom", b.Rethrow)
	assert.False(t, b.Pending())
	assert.NotPanics(t, b.Rethrow, "each panic is raised once")
}

func TestBoundary_keepsFirstPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := stumpy.L.New(stumpy.L.WithStumpy(stumpy.WithWriter(&buf)))
	b := NewBoundary(logger.Logger())

	first := errors.New("first")
	assert.False(t, b.Protect(func() { panic(first) }))
	assert.False(t, b.Protect(func() { panic("second") }))

	assert.PanicsWithError(t, "first", b.Rethrow)
	assert.Contains(t, buf.String(), "dropped panic")
	assert.Contains(t, buf.String(), "second")
}

func TestBoundary_discard(t *testing.T) {
	b := NewBoundary(nil)
	require.False(t, b.Protect(func() { panic(1) }))
	b.discard()
	assert.False(t, b.Pending())
	assert.NotPanics(t, b.Rethrow)
}

// protectingBackend wraps the software backend, running injected functions
// through its boundary, as a native dispatch trampoline would.
type protectingBackend struct {
	*softwareBackend
	boundary *Boundary
}

func newProtectingBackend(b *Boundary) (Backend, Injector, error) {
	sw := newSoftwareBackend(time.Now)
	x := &protectingBackend{softwareBackend: sw, boundary: b}
	return x, sw.inject, nil
}

func (x *protectingBackend) RunOne(wait bool) bool {
	if fn, ok := x.inject.Pop(); ok {
		x.boundary.Protect(fn)
		return true
	}
	return x.softwareBackend.RunOne(wait)
}

func TestLoop_boundaryRethrow(t *testing.T) {
	l := newTestLoop(t, WithBackend(newProtectingBackend))

	require.NoError(t, CallThread(l.Goroutine(), func() { panic("boom") }))

	var count int
	func() {
		defer func() {
			if r := recover(); r != nil {
				count++
				assert.Equal(t, "boom", r)
			}
		}()
		l.RunOne(false)
	}()
	assert.Equal(t, 1, count)
	assert.False(t, l.boundary.Pending())

	var ran bool
	_, err := l.CallAsap(func() { ran = true })
	require.NoError(t, err)
	assert.True(t, l.RunOne(false))
	assert.True(t, ran)
}
