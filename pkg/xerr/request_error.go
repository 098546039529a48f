package xerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindInternal Kind = iota
	KindInput
	KindDecode
	KindFetch
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindDecode:
		return "decode"
	case KindFetch:
		return "fetch"
	default:
		return "internal"
	}
}

// RequestError is the error carried out of the prediction pipeline.
type RequestError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *RequestError) Unwrap() error { return e.Err }

// CallerFault reports whether the failure was caused by the request itself.
func (e *RequestError) CallerFault() bool {
	return e.Kind == KindInput || e.Kind == KindDecode
}

func newError(kind Kind, err error, format string, args ...any) *RequestError {
	return &RequestError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Input(format string, args ...any) *RequestError {
	return newError(KindInput, nil, format, args...)
}

func Decode(err error, format string, args ...any) *RequestError {
	return newError(KindDecode, err, format, args...)
}

func Fetch(err error, format string, args ...any) *RequestError {
	return newError(KindFetch, err, format, args...)
}

func Internal(err error, format string, args ...any) *RequestError {
	return newError(KindInternal, err, format, args...)
}

// As extracts a RequestError from err. Foreign errors are wrapped as internal.
func As(err error) *RequestError {
	if err == nil {
		return nil
	}
	var re *RequestError
	if errors.As(err, &re) {
		return re
	}
	return Internal(err, "internal error")
}

// KindOf returns the kind of err, KindInternal for errors outside the taxonomy.
func KindOf(err error) Kind {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindInternal
}

// HTTPStatus maps err to the status code written to the caller.
// Fetch failures are reported as server-side faults.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInput, KindDecode:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
