// Package apperr defines the sentinel errors shared across the service
// and handler layers. Handlers map them to HTTP status codes; nothing
// here is retried automatically.
package apperr

import "errors"

var (
	// ErrNotFound: a referenced post, comment or user id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden: the authorization policy denied the action.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation: malformed input (bad enum value, wrong type, length).
	ErrValidation = errors.New("validation error")

	// ErrConflict: username already taken.
	ErrConflict = errors.New("conflict")

	// ErrAuthentication: credential verification failed.
	ErrAuthentication = errors.New("authentication failed")
)
