// Package taxrecords is the HTTP client for the remote tax-records service
// that owns SPPT and payment data.
package taxrecords

import (
	"errors"
	"fmt"
)

// Failure classes of a FetchError.
var (
	ErrNotFound  = errors.New("not found")
	ErrServer    = errors.New("server error")
	ErrRequest   = errors.New("request rejected")
	ErrTransport = errors.New("transport failure")
	ErrDecode    = errors.New("malformed response")
)

// FetchError describes a failed call to the tax-records service.
type FetchError struct {
	Op         string
	NOP        string
	Year       string
	StatusCode int
	Kind       error
	Err        error
}

func (e *FetchError) Error() string {
	target := e.NOP
	if e.Year != "" {
		target += " year " + e.Year
	}
	msg := fmt.Sprintf("taxrecords %s %s: %v", e.Op, target, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the failure class and the underlying cause.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// retryable reports whether another attempt may succeed.
func (e *FetchError) retryable() bool {
	return errors.Is(e.Kind, ErrServer) || errors.Is(e.Kind, ErrTransport)
}
