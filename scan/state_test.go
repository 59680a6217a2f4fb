package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionState_String(t *testing.T) {
	assert.Equal(t, "idle", IdleState.String())
	assert.Equal(t, "initializing", InitializingState.String())
	assert.Equal(t, "stepping", SteppingState.String())
	assert.Equal(t, "finishing", FinishingState.String())
	assert.Equal(t, "done", DoneState.String())
	assert.Equal(t, "aborted", AbortedState.String())
	assert.Equal(t, "unknown", SessionState(99).String())
}

func TestSessionState_IsTerminal(t *testing.T) {
	assert.True(t, DoneState.IsTerminal())
	assert.True(t, AbortedState.IsTerminal())
	assert.False(t, IdleState.IsTerminal())
	assert.False(t, SteppingState.IsTerminal())
}

func TestAtomicSessionState_HappyPath(t *testing.T) {
	var st AtomicSessionState
	assert.Equal(t, IdleState, st.Get())

	assert.True(t, st.ToInitializing())
	assert.Equal(t, InitializingState, st.Get())

	assert.True(t, st.ToStepping())
	assert.True(t, st.ToFinishing())
	assert.True(t, st.ToDone())
	assert.Equal(t, DoneState, st.Get())
}

func TestAtomicSessionState_InitializingOnlyFromIdle(t *testing.T) {
	var st AtomicSessionState
	assert.True(t, st.ToInitializing())
	assert.False(t, st.ToInitializing())
}

func TestAtomicSessionState_ZeroStepShortcut(t *testing.T) {
	// N == 0: the session finalizes directly from Initializing.
	var st AtomicSessionState
	assert.True(t, st.ToInitializing())
	assert.True(t, st.ToFinishing())
	assert.True(t, st.ToDone())
}

func TestAtomicSessionState_AbortThenFinish(t *testing.T) {
	// A failed step aborts the sequence, but cleanup still runs.
	var st AtomicSessionState
	assert.True(t, st.ToInitializing())
	assert.True(t, st.ToStepping())
	assert.True(t, st.ToAborted())
	assert.Equal(t, AbortedState, st.Get())

	assert.True(t, st.ToFinishing())
	assert.True(t, st.ToAborted())
	assert.Equal(t, AbortedState, st.Get())
}

func TestAtomicSessionState_NoAbortFromTerminal(t *testing.T) {
	var st AtomicSessionState
	assert.True(t, st.ToInitializing())
	assert.True(t, st.ToFinishing())
	assert.True(t, st.ToDone())

	assert.False(t, st.ToAborted())
	assert.Equal(t, DoneState, st.Get())
}
