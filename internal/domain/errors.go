package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures by how callers must react.
type ErrorKind string

const (
	// KindTransient covers network errors, timeouts, bad statuses and malformed bodies.
	KindTransient ErrorKind = "transient"
	// KindNotFound covers missing attachment URLs and missing detail markers.
	KindNotFound ErrorKind = "not_found"
	// KindIntegrityMismatch is a page-count mismatch after download.
	KindIntegrityMismatch ErrorKind = "integrity_mismatch"
	// KindIOFailure covers cache and filesystem write failures.
	KindIOFailure ErrorKind = "io_failure"
)

// Error carries a kind alongside the wrapped cause.
type Error struct {
	Op   string
	Kind ErrorKind
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with an operation name and kind.
func NewError(op string, kind ErrorKind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Transient is shorthand for NewError(op, KindTransient, err).
func Transient(op string, err error) error {
	return NewError(op, KindTransient, err)
}

// IOFailure is shorthand for NewError(op, KindIOFailure, err).
func IOFailure(op string, err error) error {
	return NewError(op, KindIOFailure, err)
}

// KindOf returns the kind of the first *Error in the chain, or "" when none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind checks whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
