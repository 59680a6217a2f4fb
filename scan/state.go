package scan

import "sync/atomic"

// SessionState represents the lifecycle stage of a scan session.
type SessionState uint32

// Session lifecycle states.
const (
	// IdleState indicates the session has not started.
	IdleState SessionState = iota
	// InitializingState indicates the INIT exchange is in progress.
	InitializingState
	// SteppingState indicates MOVE exchanges are being issued.
	SteppingState
	// FinishingState indicates the best-effort DONE exchange is in progress.
	FinishingState
	// DoneState indicates the session completed and DONE succeeded.
	DoneState
	// AbortedState indicates an unrecoverable error or cancellation
	// terminated the session.
	AbortedState
)

// String returns the string representation of the session state.
func (s SessionState) String() string {
	switch s {
	case IdleState:
		return "idle"
	case InitializingState:
		return "initializing"
	case SteppingState:
		return "stepping"
	case FinishingState:
		return "finishing"
	case DoneState:
		return "done"
	case AbortedState:
		return "aborted"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the state is a terminal state.
func (s SessionState) IsTerminal() bool {
	return s == DoneState || s == AbortedState
}

// AtomicSessionState holds a SessionState with atomic, transition-checked
// updates. Transitions follow:
//
//	Idle → Initializing → Stepping → Finishing → Done
//
// with Aborted reachable from Initializing, Stepping and Finishing, and
// Finishing reachable from an abort so cleanup is always attempted.
type AtomicSessionState struct {
	state atomic.Uint32
}

// Get returns the current session state.
func (st *AtomicSessionState) Get() SessionState {
	return SessionState(st.state.Load())
}

func (st *AtomicSessionState) String() string {
	return st.Get().String()
}

// ToInitializing transitions Idle → Initializing.
func (st *AtomicSessionState) ToInitializing() bool {
	return st.state.CompareAndSwap(uint32(IdleState), uint32(InitializingState))
}

// ToStepping transitions Initializing → Stepping.
func (st *AtomicSessionState) ToStepping() bool {
	return st.state.CompareAndSwap(uint32(InitializingState), uint32(SteppingState))
}

// ToFinishing transitions into Finishing from Initializing, Stepping or
// Aborted. The Aborted entry keeps the best-effort DONE attempt reachable
// after a failed or canceled sequence.
func (st *AtomicSessionState) ToFinishing() bool {
	for _, from := range []SessionState{SteppingState, InitializingState, AbortedState} {
		if st.state.CompareAndSwap(uint32(from), uint32(FinishingState)) {
			return true
		}
	}

	return false
}

// ToDone transitions Finishing → Done.
func (st *AtomicSessionState) ToDone() bool {
	return st.state.CompareAndSwap(uint32(FinishingState), uint32(DoneState))
}

// ToAborted transitions into the Aborted terminal from any non-terminal,
// non-idle state.
func (st *AtomicSessionState) ToAborted() bool {
	for _, from := range []SessionState{InitializingState, SteppingState, FinishingState} {
		if st.state.CompareAndSwap(uint32(from), uint32(AbortedState)) {
			return true
		}
	}

	return false
}
