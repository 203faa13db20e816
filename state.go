package mainloop

import (
	"sync/atomic"
)

// LoopState represents the current state of a [Loop].
//
//	StateIdle → StateRunning      [Run / RunOne]
//	StateRunning → StateIdle      [iteration complete]
//	StateIdle → StateTerminated   [Quit / Terminate, observed outside RunOne]
//	StateRunning → StateTerminating [Quit / Terminate, inside RunOne]
//	any → StateClosed             [Close]
//
// Only Idle and Running are stored; the others are derived from the
// loop's terminated and closed flags.
type LoopState uint32

const (
	// StateIdle indicates the loop exists but is not inside Run or RunOne.
	StateIdle LoopState = iota
	// StateRunning indicates the loop is inside Run or RunOne.
	StateRunning
	// StateTerminating indicates termination was requested while running.
	StateTerminating
	// StateTerminated indicates termination was requested; Run returns,
	// and RunOne no longer makes progress.
	StateTerminated
	// StateClosed indicates the loop has been closed.
	StateClosed
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// runState guards the Idle/Running transition.
type runState struct {
	v atomic.Uint32
}

func (s *runState) Load() LoopState {
	return LoopState(s.v.Load())
}

func (s *runState) Store(state LoopState) {
	s.v.Store(uint32(state))
}

// TryTransition attempts to atomically transition from one state to another.
func (s *runState) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
