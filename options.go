// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package mainloop

import (
	"github.com/joeycumines/logiface"
)

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	backend      BackendFactory
	logger       *logiface.Logger[logiface.Event]
	lockOSThread bool
}

// --- Loop Options ---

// LoopOption configures a Loop instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithBackend sets the factory used to construct the loop's backend.
// A nil factory selects the default, [NewSoftwareBackend].
func WithBackend(factory BackendFactory) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.backend = factory
		return nil
	}}
}

// WithLogger sets the structured logger used by the loop, its backend
// boundary, and any [Executor] or [Stream] bound to it. A nil logger (the
// default) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithLockOSThread pins the constructing goroutine to its OS thread, from
// [New] until [Loop.Close]. Needed by backends whose native resources are
// thread-affine.
func WithLockOSThread(enabled bool) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.lockOSThread = enabled
		return nil
	}}
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.backend == nil {
		cfg.backend = NewSoftwareBackend
	}
	return cfg, nil
}
