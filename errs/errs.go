// Package errs defines the small set of error kinds that verification,
// coordination and storage code in pyomcore can raise. Every fallible
// operation wraps the underlying cause in one of these kinds so callers
// (CLI, rpc) can decide what to report without parsing message text.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed.
type Kind int

const (
	Schema Kind = iota
	HashMismatch
	SignatureInvalid
	FprMismatch
	BadTimestamp
	DuplicateTransaction
	UnknownKey
	AlreadyBanned
	StateTransitionDenied
	InvalidParticipant
	NoSignedTag
	LayoutCorruption
	PathEscape
	NotFound
	IOError
)

func (k Kind) String() string {
	switch k {
	case Schema:
		return "schema"
	case HashMismatch:
		return "hash_mismatch"
	case SignatureInvalid:
		return "signature_invalid"
	case FprMismatch:
		return "fpr_mismatch"
	case BadTimestamp:
		return "bad_timestamp"
	case DuplicateTransaction:
		return "duplicate_transaction"
	case UnknownKey:
		return "unknown_key"
	case AlreadyBanned:
		return "already_banned"
	case StateTransitionDenied:
		return "state_transition_denied"
	case InvalidParticipant:
		return "invalid_participant"
	case NoSignedTag:
		return "no_signed_tag"
	case LayoutCorruption:
		return "layout_corruption"
	case PathEscape:
		return "path_escape"
	case NotFound:
		return "not_found"
	case IOError:
		return "io_error"
	default:
		return "unknown"
	}
}

// Error is a typed, wrappable error. Callers use errors.As to recover the
// Kind, or the Is helper below for a one-line check.
type Error struct {
	Kind Kind
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

// New creates an Error with no underlying cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and msg to an underlying error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err (or anything it wraps) is an *Error of kind k.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
