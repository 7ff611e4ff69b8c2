package fetchwire

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Error taxonomy
// -----------------------------------------------------------------------------

// ErrorKind classifies a request failure. Every error surfaced by the client
// carries exactly one kind, so callers can switch on it instead of probing
// error shapes.
type ErrorKind string

const (
	// ErrorKindTransport marks a network-level failure; no HTTP status is available.
	ErrorKindTransport ErrorKind = "transport"
	// ErrorKindHTTP marks a response whose status code falls outside the 2xx range.
	ErrorKindHTTP ErrorKind = "http"
	// ErrorKindParse marks a response body that could not be decoded per its
	// declared content type.
	ErrorKindParse ErrorKind = "parse"
	// ErrorKindInterceptor marks a rejection raised by a request or response
	// interceptor.
	ErrorKindInterceptor ErrorKind = "interceptor"
	// ErrorKindCancel marks an explicit cancellation or a timeout-triggered abort.
	ErrorKindCancel ErrorKind = "cancel"
)

// ErrCanceled is the cancellation cause recorded when a request is aborted
// through CancelRequest or CancelAllRequests.
var ErrCanceled = errors.New("fetchwire: request canceled")

// RequestError is the uniform failure record used across all error sources.
// StatusCode is zero when no HTTP status is available (network failure,
// cancellation, interceptor rejection before the transport ran).
type RequestError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Data       any
	Config     *RequestConfig
	Cause      error
}

func (e *RequestError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetchwire: %s (status %d)", e.Message, e.StatusCode)
	}
	return "fetchwire: " + e.Message
}

func (e *RequestError) Unwrap() error { return e.Cause }

// IsCancel reports whether err is a cancellation or timeout abort.
func IsCancel(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.Kind == ErrorKindCancel
}

// AsRequestError extracts the typed record from an error chain.
func AsRequestError(err error) (*RequestError, bool) {
	var re *RequestError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
