// Package errs defines the error kinds shared across the core. Every
// core-facing error is one of these sentinels (optionally wrapped with
// details via As/Is) so adapters never have to parse provider-specific
// error strings.
package errs

import "errors"

// Kind identifies one of the stable machine error codes from the error
// handling design. Kinds never leave the core as raw provider strings.
type Kind string

const (
	KindProviderUnavailable   Kind = "provider_unavailable"
	KindSchemaViolation       Kind = "schema_violation"
	KindToolCallMalformed     Kind = "tool_call_malformed"
	KindPermissionDenied      Kind = "permission_denied"
	KindStepTimeout           Kind = "step_timeout"
	KindCostCapExceeded       Kind = "cost_cap_exceeded"
	KindSandboxDenied         Kind = "sandbox_denied"
	KindCancelled             Kind = "cancelled"
	KindSignalExtractionFail  Kind = "signal_extraction_failed"
	KindPlaybookUnusable      Kind = "playbook_unusable"
	KindPersistenceConflict   Kind = "persistence_conflict"
)

// Error is a typed core error. Details carries structured context (tool
// name, step id, cost figures, ...) for logging and user-visible messages
// without leaking provider internals.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return string(e.Kind) + ": " + e.Message
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a typed error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a typed error of the given kind that wraps cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithDetails attaches structured details to the error, returning the same
// instance for chaining at the construction site.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind == kind
	}
	return false
}

// Propagation policy classifies a kind per the error handling design:
// recovered locally, step-local, or session-fatal. Callers use this to
// decide whether a step failure should also fail the owning session.
type Propagation int

const (
	PropagationRecoveredLocally Propagation = iota
	PropagationStepLocal
	PropagationSessionFatal
)

// PropagationOf returns the propagation policy for a kind.
func PropagationOf(kind Kind) Propagation {
	switch kind {
	case KindProviderUnavailable, KindSignalExtractionFail, KindPersistenceConflict:
		return PropagationRecoveredLocally
	case KindSchemaViolation, KindToolCallMalformed, KindStepTimeout, KindSandboxDenied:
		return PropagationStepLocal
	case KindCostCapExceeded, KindCancelled, KindPermissionDenied, KindPlaybookUnusable:
		return PropagationSessionFatal
	default:
		return PropagationStepLocal
	}
}
