package model

import (
	"errors"
	"fmt"
)

// Error kinds. Every domain error wraps exactly one of these so handlers can
// map it to a transport status with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrConflict         = errors.New("conflict")
	ErrUpstream         = errors.New("upstream unavailable")
)

// kindError is a message tagged with an error kind.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// UpstreamError reports a failed call to a backing store or remote service.
// It matches both ErrUpstream and the underlying cause.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() []error {
	return []error{ErrUpstream, e.Err}
}

// Upstream wraps err as an UpstreamError unless it already carries a domain kind.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomain(err) {
		return err
	}
	return &UpstreamError{Op: op, Err: err}
}

// IsDomain reports whether err already carries one of the error kinds.
func IsDomain(err error) bool {
	for _, kind := range []error{ErrNotFound, ErrValidation, ErrPermissionDenied, ErrUnauthenticated, ErrConflict, ErrUpstream} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
