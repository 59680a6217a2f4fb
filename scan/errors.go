package scan

import (
	"errors"
	"fmt"
)

var (
	// ErrConnect indicates a transport-level failure to establish the
	// connection for a command exchange.
	ErrConnect = errors.New("scan: connect failed")

	// ErrInit indicates that the INIT exchange failed or returned a
	// malformed reply. No MOVE or DONE is issued after an INIT failure.
	ErrInit = errors.New("scan: INIT exchange failed")

	// ErrProtocol indicates a reply that violates the wire contract,
	// such as a negative step count or an oversized reply.
	ErrProtocol = errors.New("scan: protocol violation")

	// ErrEmptyReply indicates the server closed the connection without
	// sending any reply bytes.
	ErrEmptyReply = errors.New("scan: empty reply")

	// ErrMalformedReply indicates a reply of unexpected length.
	ErrMalformedReply = errors.New("scan: malformed reply")

	// ErrSessionReused indicates Run was called on a controller that has
	// already run. Each experiment requires a fresh controller.
	ErrSessionReused = errors.New("scan: controller already ran, create a new controller per experiment")

	// ErrConfigNil indicates that a nil ControllerConfig was provided.
	ErrConfigNil = errors.New("scan: controller config is nil")
)

// StepError reports a failed MOVE exchange. Index is the 0-based scan step
// at which the failure occurred; no further MOVE is issued for later steps.
type StepError struct {
	Index int
	Cause error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("scan: step %d failed: %v", e.Index, e.Cause)
}

func (e *StepError) Unwrap() error { return e.Cause }

// CleanupError reports a failed best-effort DONE exchange. It never masks
// an earlier error: when a step already failed, the cleanup error is
// recorded on the Result instead of being returned.
type CleanupError struct {
	Cause error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("scan: DONE cleanup failed: %v", e.Cause)
}

func (e *CleanupError) Unwrap() error { return e.Cause }

// AbortError reports that cancellation terminated the sequence before
// completion. DONE is still attempted when INIT had succeeded.
type AbortError struct {
	Reason error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("scan: session aborted: %v", e.Reason)
}

func (e *AbortError) Unwrap() error { return e.Reason }
