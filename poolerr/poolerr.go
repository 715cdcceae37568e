// Package poolerr implements the error taxonomy described in
// SPEC_FULL.md §7: validation failures at the HTTP edge, transient chain
// errors, the recoverable irregular-reset path, and fatal internal errors
// that should cause the process to exit so a supervisor restarts it.
package poolerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for logging and for the HTTP layer's status
// code mapping.
type Kind int

const (
	// KindValidation is a per-request, non-fatal client error.
	KindValidation Kind = iota
	// KindTransientChain is a per-round chain RPC failure that may be
	// retried or may trigger an irregular reset.
	KindTransientChain
	// KindIrregularReset is a recoverable loss of the local round due to a
	// missed rotation.
	KindIrregularReset
	// KindInternal is fatal: it violates an invariant the driver relies on
	// and the process must be restarted.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransientChain:
		return "transient_chain"
	case KindIrregularReset:
		return "irregular_reset"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Code further classifies a KindValidation error for callers that need to
// map it to a specific response (e.g. the HTTP layer's status code) without
// string-matching the message.
type Code string

const (
	CodeInvalidSignature   Code = "invalid_signature"
	CodeBelowMinDifficulty Code = "below_min_difficulty"
	CodeInvalidDigest      Code = "invalid_digest"
)

// Error is a typed pool error carrying a Kind for dispatch, an optional Code
// refining a KindValidation error, and an underlying cause for diagnostics.
type Error struct {
	Kind Kind
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation constructs a KindValidation error carrying code, so callers one
// layer up (the HTTP transport) can dispatch on a stable value instead of
// the message text.
func Validation(code Code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Msg: msg}
}

// TransientChain wraps a chain RPC failure.
func TransientChain(msg string, err error) *Error {
	return &Error{Kind: KindTransientChain, Msg: msg, Err: err}
}

// IrregularReset constructs a KindIrregularReset error.
func IrregularReset(msg string) *Error {
	return &Error{Kind: KindIrregularReset, Msg: msg}
}

// Internal wraps a fatal internal invariant violation.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// Is reports whether err carries the given Kind, unwrapping through the
// standard errors chain.
func Is(err error, kind Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// CodeOf extracts err's Code if it is a *Error, unwrapping through the
// standard errors chain.
func CodeOf(err error) (Code, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return "", false
}
