package gallery

import "errors"

var (
	// ErrInvalidInput covers bad file types and malformed batches.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorageFailure is a write error against the content store.
	ErrStorageFailure = errors.New("storage failure")

	// ErrStorageUnavailable is a read or enumeration error.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrTransport is a connection drop or truncated body during a request.
	ErrTransport = errors.New("transport error")
)
