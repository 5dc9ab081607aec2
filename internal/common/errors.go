// Package common defines shared constants, sentinel errors and small helpers
// used across cashkeeper. Callers should use errors.Is to match the errors.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Request-level errors (400 class).
	ErrInvalidRequest = errors.New("invalid request")

	// Authentication errors (401 class). Expired and tampered tokens are
	// both reported as ErrInvalidToken.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUnknownUser        = errors.New("user no longer valid")

	// Upstream mail session missing or expired (503 class).
	ErrServiceUnavailable = errors.New("service unavailable")

	// Unexpected failure in reconciliation or storage (500 class).
	ErrorInternal = errors.New("internal error")

	// Missing or weak secrets; fatal at startup.
	ErrConfiguration = errors.New("configuration error")
)
