package linklist

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an operation failure so callers can decide whether to
// revert, retry, skip, or surface it to the user.
type Kind string

const (
	// KindValidation marks a malformed input rejected before any network
	// call. Bulk import counts these as skipped, never failed.
	KindValidation Kind = "validation"

	// KindNetwork marks a transport-level failure (connection refused,
	// DNS, unexpected EOF).
	KindNetwork Kind = "network"

	// KindAborted marks a request cancelled by its caller. Never counted
	// as a hard failure.
	KindAborted Kind = "aborted"

	// KindTimeout marks a per-call or per-phase deadline exceeded.
	KindTimeout Kind = "timeout"

	// KindConflict marks a locally-preserved state that diverges
	// irreconcilably from the server's; resolved by refetching canonical
	// state.
	KindConflict Kind = "conflict"

	// KindPermission marks a caller that lacks the required capability.
	// Session-level permission loss is fatal to the current view.
	KindPermission Kind = "permission"
)

// Sentinel errors for errors.Is checks. OpError wraps one of these so a
// caller can match either the sentinel or the typed error.
var (
	ErrValidation = errors.New("validation failed")
	ErrNetwork    = errors.New("network failure")
	ErrAborted    = errors.New("operation aborted")
	ErrTimeout    = errors.New("deadline exceeded")
	ErrConflict   = errors.New("state conflict")
	ErrPermission = errors.New("permission denied")
	ErrNotFound   = errors.New("not found")
)

// OpError is a classified operation failure.
type OpError struct {
	Kind Kind
	Op   string // e.g. "commit_reorder", "fetch_metadata"
	Err  error  // underlying cause, may be nil
}

func (e *OpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

// Unwrap exposes the sentinel for the error's kind, chained to the
// underlying cause, so both errors.Is(err, ErrTimeout) and
// errors.Is(err, cause) hold.
func (e *OpError) Unwrap() []error {
	sentinel := e.Kind.sentinel()
	if e.Err == nil {
		return []error{sentinel}
	}
	return []error{sentinel, e.Err}
}

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindNetwork:
		return ErrNetwork
	case KindAborted:
		return ErrAborted
	case KindTimeout:
		return ErrTimeout
	case KindConflict:
		return ErrConflict
	case KindPermission:
		return ErrPermission
	}
	return errors.New(string(k))
}

// NewError builds a classified operation error.
func NewError(kind Kind, op string, err error) *OpError {
	return &OpError{Kind: kind, Op: op, Err: err}
}

// Classify maps an arbitrary error from a remote call into a Kind.
// Context cancellation is an abort (the caller chose to stop); a context
// deadline is a timeout (the call was too slow).
func Classify(err error) Kind {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Kind
	}
	switch {
	case errors.Is(err, context.Canceled):
		return KindAborted
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindNetwork
	}
}

// IsAborted reports whether the error was caused by caller cancellation.
func IsAborted(err error) bool { return errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled) }

// IsTimeout reports whether the error was a deadline expiry.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// IsPermission reports whether the error was a capability failure.
func IsPermission(err error) bool { return errors.Is(err, ErrPermission) }

// IsConflict reports whether the error was an irreconcilable divergence.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
