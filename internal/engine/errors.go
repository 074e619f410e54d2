package engine

import (
	"errors"
	"fmt"
)

// Cancellation causes. An operation aborted with one of these was stopped
// by the caller, not by the network, and ends silently.
var (
	// ErrSuperseded cancels an auto-sync made stale by a newer change, a
	// manual save, or auto-sync being switched off.
	ErrSuperseded = errors.New("superseded by a newer change")

	// ErrTornDown cancels everything in flight when the engine stops.
	ErrTornDown = errors.New("sync engine torn down")

	// ErrLoggedOut cancels remote work when the session is cleared.
	ErrLoggedOut = errors.New("logged out")
)

// ErrStopped is reported by operations submitted after the engine stopped.
var ErrStopped = errors.New("sync engine stopped")

// SyncError is a failed profile operation.
//
// Transport errors (network failure, non-2xx, malformed body) and local
// validation failures both surface as a SyncError on the operation's
// Outcome. Neither is ever returned past the engine boundary as a panic
// or an unhandled error.
type SyncError struct {
	// Code identifies the error category.
	Code SyncErrorCode

	// Op is the operation that failed: load, save or autosync.
	Op string

	// Err is the underlying cause.
	Err error
}

// SyncErrorCode categorizes sync errors.
type SyncErrorCode string

const (
	// ErrCodeTransport indicates the remote call failed. The local cache is retained.
	ErrCodeTransport SyncErrorCode = "TRANSPORT"

	// ErrCodeValidation indicates the draft failed a local constraint and never reached the network.
	ErrCodeValidation SyncErrorCode = "VALIDATION"

	// ErrCodeLocalWrite indicates the profile could not be persisted locally.
	ErrCodeLocalWrite SyncErrorCode = "LOCAL_WRITE"
)

// Error implements the error interface.
func (e *SyncError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Op, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// IsTransportError returns true if err is (or wraps) a transport SyncError.
func IsTransportError(err error) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code == ErrCodeTransport
	}
	return false
}

// IsCallerAbort reports whether cause is one of the caller-initiated
// cancellation causes.
func IsCallerAbort(cause error) bool {
	return errors.Is(cause, ErrSuperseded) ||
		errors.Is(cause, ErrTornDown) ||
		errors.Is(cause, ErrLoggedOut) ||
		errors.Is(cause, ErrStopped)
}
