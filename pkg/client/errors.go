package client

import (
	"errors"
	"fmt"
	"time"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when the retry budget ran out.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context ends during a fetch.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrNotFound is returned when the upstream has no such resource.
	ErrNotFound = errors.New("resource not found")
)

// ErrorClass represents a classification of a failed attempt.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses other than 404 and 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassNotFound represents 404 responses.
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassServer represents 5xx and otherwise unexpected statuses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport errors and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents a 2xx response whose body is not JSON.
	ErrorClassDecode ErrorClass = "decode"
)

// APIError describes one failed attempt against the upstream API.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error

	// retryAfter is the upstream Retry-After hint on 429 responses.
	retryAfter time.Duration
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("jikan %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("jikan %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// FetchError is the terminal failure of a logical fetch. Retries have
// already happened (or were not allowed) by the time callers see it.
type FetchError struct {
	Endpoint   string
	Class      ErrorClass
	StatusCode int
	Attempts   int
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.Endpoint, e.Attempts, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsTerminal reports whether err is a terminal fetch failure.
func IsTerminal(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// IsNotFound reports whether err means the requested resource does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ClassOf returns the error class carried by err, or "" if there is none.
func ClassOf(err error) ErrorClass {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Class
	}
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.ErrorClass
	}
	return ""
}

// shouldRetry determines if an error class is recoverable by retrying.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassRateLimit, ErrorClassServer, ErrorClassNetwork, ErrorClassDecode:
		return true
	case ErrorClassClient, ErrorClassNotFound:
		// Retrying a bad request or a missing resource only burns rate limit.
		return false
	default:
		return false
	}
}
