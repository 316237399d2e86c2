package source

import (
	"errors"
	"fmt"
)

// ErrorKind classifies per-source failures. All kinds are recoverable: they
// are routed to the failure notifier and never terminate the process.
type ErrorKind string

const (
	ErrorKindConnect ErrorKind = "connect"
	ErrorKindAuth    ErrorKind = "auth"
	ErrorKindFetch   ErrorKind = "fetch"
)

// Error is a classified per-source failure.
type Error struct {
	Kind   ErrorKind
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error for %s: %v", e.Kind, e.Source, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewConnectError wraps a failure to reach or connect to a source.
func NewConnectError(sourceName string, err error) *Error {
	return &Error{Kind: ErrorKindConnect, Source: sourceName, Err: err}
}

// NewAuthError wraps an authentication or pairing failure.
func NewAuthError(sourceName string, err error) *Error {
	return &Error{Kind: ErrorKindAuth, Source: sourceName, Err: err}
}

// NewFetchError wraps a failure to retrieve metadata from a connected source.
func NewFetchError(sourceName string, err error) *Error {
	return &Error{Kind: ErrorKindFetch, Source: sourceName, Err: err}
}

// KindOf extracts the error kind, defaulting to fetch for unclassified
// errors (including context deadline on a hung source).
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ErrorKindFetch
}
