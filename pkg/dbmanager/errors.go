package dbmanager

import (
	"errors"
	"fmt"
	"net/http"
)

// ConnectionError indicates a malformed connection string or an unreachable
// deployment. Surfaced as 400 and never retried server-side.
type ConnectionError struct {
	Message string
}

func (e *ConnectionError) Error() string {
	return e.Message
}

// NewConnectionError creates a ConnectionError with a formatted message
func NewConnectionError(format string, args ...interface{}) *ConnectionError {
	return &ConnectionError{Message: fmt.Sprintf(format, args...)}
}

// NotConnectedError indicates that an operation was attempted before connect
type NotConnectedError struct{}

func (e *NotConnectedError) Error() string {
	return "not connected to a database, call connect first"
}

// NotFoundError indicates a missing document or collection
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

// NewNotFoundError creates a NotFoundError with a formatted message
func NewNotFoundError(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ValueDecodeError indicates a malformed tagged transport value
type ValueDecodeError struct {
	Message string
}

func (e *ValueDecodeError) Error() string {
	return e.Message
}

// NewValueDecodeError creates a ValueDecodeError with a formatted message
func NewValueDecodeError(format string, args ...interface{}) *ValueDecodeError {
	return &ValueDecodeError{Message: fmt.Sprintf(format, args...)}
}

// StoreError wraps any other failure coming back from the store
type StoreError struct {
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError wraps an underlying store failure
func NewStoreError(message string, err error) *StoreError {
	return &StoreError{Message: message, Err: err}
}

// HTTPStatus maps an error from this package to the HTTP status code the
// request boundary should respond with.
func HTTPStatus(err error) int {
	var connErr *ConnectionError
	var notConnErr *NotConnectedError
	var notFoundErr *NotFoundError
	var decodeErr *ValueDecodeError

	switch {
	case errors.As(err, &connErr):
		return http.StatusBadRequest
	case errors.As(err, &notConnErr):
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.As(err, &decodeErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
