package domain

import "errors"

var (
	// ErrAuthenticationFailure is returned when the authentication service
	// rejects the request or cannot be reached.
	ErrAuthenticationFailure = errors.New("authentication failure")

	// ErrMalformedResponse is returned when the authentication service
	// answers with a payload that does not match the expected shape.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrInvalidIdentity is returned before any I/O when the client identity
	// lacks an app ID, key ID or secret.
	ErrInvalidIdentity = errors.New("invalid client identity")
)
