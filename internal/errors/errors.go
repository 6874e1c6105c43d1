package errors

import "errors"

// This package defines a centralized set of sentinel errors for the application.
// Services return these wrapped with context; the API layer and the store use
// `errors.Is()` to decide how a failure is reported.

var (
	// ErrNotFound signifies that a requested resource could not be located.
	// This is typically mapped to a 404 Not Found HTTP status.
	ErrNotFound = errors.New("resource not found")

	// ErrValidation signifies that input data failed business rule validation.
	// This is typically mapped to a 400 Bad Request HTTP status.
	ErrValidation = errors.New("validation failed")

	// ErrConflict signifies that an operation conflicts with the current state,
	// e.g. a second send into a conversation that is still streaming.
	// This is typically mapped to a 409 Conflict HTTP status.
	ErrConflict = errors.New("resource conflict")

	// ErrNotConfigured signifies a missing credential or setting. It is raised
	// before any network attempt and is fatal to the requested operation only.
	ErrNotConfigured = errors.New("not configured")

	// ErrTransport signifies a failed call to the completion provider: a
	// network failure or a non-2xx response.
	// This is typically mapped to a 502 Bad Gateway HTTP status.
	ErrTransport = errors.New("completion provider error")

	// ErrPersistence signifies that the storage backend rejected an operation.
	ErrPersistence = errors.New("persistence error")

	// ErrInternal signifies an unexpected error. It is used to avoid leaking
	// implementation details to the client.
	// This is typically mapped to a 500 Internal Server Error HTTP status.
	ErrInternal = errors.New("internal server error")
)
