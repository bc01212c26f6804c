// Package agonerr implements the runtime's error taxonomy (spec.md §7):
// a small set of typed errors each wrapping a cause, so callers can branch
// on kind via errors.Is while the original error text is preserved via
// errors.Unwrap.
package agonerr

import (
	"errors"
	"fmt"
)

// Kind identifies which row of the §7 error taxonomy table an error belongs
// to.
type Kind string

const (
	InvalidArgument   Kind = "invalid-argument"
	UpstreamError     Kind = "upstream-error"
	MCPSpawnError     Kind = "mcp-spawn-error"
	MCPDiscoveryError Kind = "mcp-discovery-error"
	MCPTimeout        Kind = "mcp-timeout"
	MCPToolFailure    Kind = "mcp-tool-failure"
	AccessDenied      Kind = "access-denied"
	RunawayLoop       Kind = "runaway-loop"
	NoExecutor        Kind = "no-executor"
)

// Error is a taxonomy-tagged error. Two Errors are errors.Is-equal when
// their Kind matches, regardless of message or wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind — this is what
// makes errors.Is(err, agonerr.New(agonerr.AccessDenied, "", nil)) work; the
// package-level Is(err, agonerr.AccessDenied) below is the shorter form.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New builds a tagged Error. Cause may be nil.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Newf builds a tagged Error with a formatted message.
func Newf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
