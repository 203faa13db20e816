// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package mainloop

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(buf *bytes.Buffer) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(
			stumpy.WithWriter(buf),
			stumpy.WithTimeField(``),
		),
		stumpy.L.WithLevel(logiface.LevelTrace),
	).Logger()
}

func TestDefaultOptions(t *testing.T) {
	cfg, err := resolveLoopOptions(nil)
	require.NoError(t, err)
	assert.NotNil(t, cfg.backend)
	assert.Nil(t, cfg.logger)
	assert.False(t, cfg.lockOSThread)
}

func TestNilOption(t *testing.T) {
	l, err := New(nil, WithLogger(nil), nil)
	require.NoError(t, err)
	require.NoError(t, l.Close())
}

func TestWithBackend_nilSelectsDefault(t *testing.T) {
	l := newTestLoop(t, WithBackend(nil))
	_, ok := l.backend.(*softwareBackend)
	assert.True(t, ok)
}

func TestWithLockOSThread(t *testing.T) {
	l, err := New(WithLockOSThread(true))
	require.NoError(t, err)
	assert.True(t, l.lockedThread)

	_, err = l.CallAsap(func() { Terminate() })
	require.NoError(t, err)
	l.Run()

	require.NoError(t, l.Close())
	assert.False(t, l.lockedThread)
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(WithLogger(newTestLogger(&buf)))
	require.NoError(t, err)

	e := NewExecutor(l)
	v, ok := BlockOn(e, Ready("x"))
	require.True(t, ok)
	assert.Equal(t, "x", v)

	require.NoError(t, l.Close())

	out := buf.String()
	assert.Contains(t, out, `"msg":"mainloop: task complete"`)
	assert.Contains(t, out, `"msg":"mainloop: closed"`)
	assert.Equal(t, 2, strings.Count(out, "\n"), out)
}

func TestWithLogger_backendFailure(t *testing.T) {
	var buf bytes.Buffer
	_, err := New(
		WithLogger(newTestLogger(&buf)),
		WithBackend(func(*Boundary) (Backend, Injector, error) {
			return nil, nil, errors.New("epoll_create1: too many open files")
		}),
	)
	require.Error(t, err)
	assert.Contains(t, buf.String(), `"lvl":"err"`)
	assert.Contains(t, buf.String(), "failed to construct backend")
	assert.Contains(t, buf.String(), "too many open files")
}

type failingInjector struct{}

func (failingInjector) Inject(func()) error { return errors.New("queue full") }

func TestWithLogger_dispatchFailure(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLoop(t,
		WithLogger(newTestLogger(&buf)),
		WithBackend(func(b *Boundary) (Backend, Injector, error) {
			be := newSoftwareBackend(time.Now)
			return be, failingInjector{}, nil
		}),
	)

	err := CallThread(l.Goroutine(), func() {})
	assert.EqualError(t, err, "queue full")
	assert.Contains(t, buf.String(), `"lvl":"warning"`)
	assert.Contains(t, buf.String(), "cross-goroutine dispatch failed")
}

func TestWithLogger_boundaryPanics(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLoop(t,
		WithLogger(newTestLogger(&buf)),
		WithBackend(newProtectingBackend),
	)

	require.NoError(t, CallThread(l.Goroutine(), func() { panic("boom") }))
	assert.PanicsWithValue(t, "boom", func() { l.RunOne(false) })
	assert.Contains(t, buf.String(), "re-raising panic caught at backend boundary")
}
