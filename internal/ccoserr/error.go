// Package ccoserr provides the structured error taxonomy shared by every
// CCOS component. Errors preserve message and causal context while still
// implementing the standard error interface, matching the teacher runtime's
// toolerrors package so callers can chain with errors.Is/As.
package ccoserr

import (
	"errors"
	"fmt"
)

// Kind classifies the failure per the error taxonomy of record.
type Kind string

const (
	// KindParse covers malformed plan source or schema mismatch after normalization.
	KindParse Kind = "parse"
	// KindSecurity covers a blocked capability, denied effect, or policy deny.
	KindSecurity Kind = "security_violation"
	// KindResource covers timeout, memory/cpu exceeded, or fs/network policy block.
	KindResource Kind = "resource_violation"
	// KindNotFound covers an unknown capability id at preflight or dispatch.
	KindNotFound Kind = "capability_not_found"
	// KindProvider covers an underlying Http/Mcp/Wasm provider failure.
	KindProvider Kind = "provider_error"
	// KindGovernance covers a constitutional deny or negative judge verdict.
	KindGovernance Kind = "governance_rejection"
	// KindInternal covers an invariant breach.
	KindInternal Kind = "internal"
)

// Error is a structured CCOS failure. Cause links to an underlying Error,
// enabling error chains via errors.Is/As while keeping the Kind stable
// across wrapping so handlers can switch on it without unwrapping.
type Error struct {
	Kind Kind
	// Message is the human-readable, already-redacted summary.
	Message string
	// Retryable indicates whether the caller may retry the same operation.
	Retryable bool
	// Fields carries structured context (operation, capability, context) per
	// the Security/Resource/Provider error kinds.
	Fields map[string]any
	Cause  *Error
}

// New constructs an Error of the given kind with the provided message.
func New(kind Kind, message string) *Error {
	if message == "" {
		message = string(kind)
	}
	return &Error{Kind: kind, Message: message}
}

// Newf formats according to a format specifier and returns the result as an Error.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// WithFields attaches structured context and returns the receiver for chaining.
func (e *Error) WithFields(fields map[string]any) *Error {
	if e == nil {
		return nil
	}
	e.Fields = fields
	return e
}

// WithRetryable marks the error retryable and returns the receiver for chaining.
func (e *Error) WithRetryable(retryable bool) *Error {
	if e == nil {
		return nil
	}
	e.Retryable = retryable
	return e
}

// NewWithCause constructs an Error that wraps an underlying error. The cause
// is converted into an Error chain so kind/message metadata survives wrapping.
func NewWithCause(kind Kind, message string, cause error) *Error {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &Error{Kind: kind, Message: message, Cause: FromError(cause)}
}

// FromError converts an arbitrary error into an Error chain. A nil error
// returns nil. Errors that are already *Error pass through unchanged.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindInternal, Message: err.Error(), Cause: FromError(errors.Unwrap(err))}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying Error to support errors.Is/As.
func (e *Error) Unwrap() error {
	if e == nil || e.Cause == nil {
		return nil
	}
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, supporting
// errors.Is(err, ccoserr.New(ccoserr.KindSecurity, "")) style kind checks.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil {
		return false
	}
	return e.Kind == t.Kind
}

// Verdict is the user-visible structured failure shape of record (§7):
// {success: false, error_kind, message}.
type Verdict struct {
	Success bool   `json:"success"`
	Kind    Kind   `json:"error_kind,omitempty"`
	Message string `json:"message,omitempty"`
}

// ToVerdict renders err as the user-visible structured verdict, redacting
// nothing further (callers are expected to have redacted secrets already via
// the redaction helpers before constructing the message).
func ToVerdict(err error) Verdict {
	if err == nil {
		return Verdict{Success: true}
	}
	e := FromError(err)
	return Verdict{Success: false, Kind: e.Kind, Message: e.Error()}
}
