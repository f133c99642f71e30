package domain

import (
	"errors"
	"fmt"
)

// Error classes returned by the movie repository. Callers match them with errors.Is.
var (
	// ErrNotFound indicates no source knows the requested movie
	ErrNotFound = errors.New("movie not found")

	// ErrTransport indicates the remote catalog could not be reached or answered badly
	ErrTransport = errors.New("catalog unavailable")

	// ErrStorage indicates a local store read or write failed
	ErrStorage = errors.New("local store failure")
)

// Transport and store details. These are wrapped by the classes above before they
// leave the repository.
var (
	// ErrServerOffline indicates the catalog server is unreachable
	ErrServerOffline = errors.New("catalog server is unreachable")

	// ErrAuthFailed indicates the catalog rejected the API key
	ErrAuthFailed = errors.New("catalog api key is invalid")

	// ErrCircuitOpen indicates the catalog client is failing fast after repeated errors
	ErrCircuitOpen = errors.New("catalog circuit breaker is open")

	// ErrStoreClosed indicates the store was used after Close
	ErrStoreClosed = errors.New("store is closed")
)

// OpError is the error returned by repository operations. It keeps the raw cause
// for logging but only unwraps to its class, so callers cannot depend on
// transport or driver error types.
type OpError struct {
	Op    string // repository operation, e.g. "details"
	Class error  // one of ErrNotFound, ErrTransport, ErrStorage
	Err   error  // underlying cause, may be nil
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Class)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Class, e.Err)
}

func (e *OpError) Unwrap() error { return e.Class }

// NewOpError builds an OpError.
func NewOpError(op string, class, err error) *OpError {
	return &OpError{Op: op, Class: class, Err: err}
}
