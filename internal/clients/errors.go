// Package clients holds the outbound ports to peer microservices and
// their HTTP adapters.
package clients

import (
	"errors"
	"fmt"
)

// ErrNotFound signals the requested record does not exist downstream.
var ErrNotFound = errors.New("resource not found")

// ValidationError signals the peer rejected the request as invalid.
// It is non-retryable; the caller's input is wrong.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Detail
}

// ConnectionError signals the peer could not be reached before the
// bounded timeout. Inside a saga it is treated like any other forward
// failure and triggers compensation, not a retry.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return "connection failed: " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// HTTPError signals a non-2xx response that is neither a 404 nor a
// validation rejection.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}
