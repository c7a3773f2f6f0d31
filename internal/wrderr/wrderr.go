// Package wrderr defines the closed set of error kinds the core uses to
// classify failures for recovery decisions and metrics, per the error
// handling design: kinds are not Go types to switch on with errors.As,
// they are a tag carried alongside a wrapped cause.
package wrderr

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error classification tag.
type Kind string

const (
	CapabilityMissing  Kind = "capability_missing"
	PermissionDenied   Kind = "permission_denied"
	StrategyFailed     Kind = "strategy_failed"
	BackendInitFailed  Kind = "backend_init_failed"
	TransientEncode    Kind = "transient_encode_error"
	FatalEncode        Kind = "fatal_encode_error"
	Transport          Kind = "transport_error"
	Protocol           Kind = "protocol_error"
	ResourceExhausted  Kind = "resource_exhausted"
	Cancelled          Kind = "cancelled"
)

// Error wraps a cause with a Kind and a short human-readable diagnostic.
type Error struct {
	Kind       Kind
	Diagnostic string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Diagnostic, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Diagnostic)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with the given kind and diagnostic.
func New(kind Kind, diagnostic string) *Error {
	return &Error{Kind: kind, Diagnostic: diagnostic}
}

// Wrap builds an *Error from kind, diagnostic, and an underlying cause.
func Wrap(kind Kind, diagnostic string, cause error) *Error {
	return &Error{Kind: kind, Diagnostic: diagnostic, Cause: cause}
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}

// KindOf extracts the Kind from err, or "" if err does not carry one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Fatal reports whether a Kind terminates the session immediately per
// the session controller's fatal-condition table.
func Fatal(kind Kind) bool {
	switch kind {
	case FatalEncode, Transport, ResourceExhausted:
		return true
	default:
		return false
	}
}
