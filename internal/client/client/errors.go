package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnavailable        = errors.New("server unavailable")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrMailUnavailable    = errors.New("mail service not available")
	ErrRateLimited        = errors.New("too many requests")
	ErrBadRequest         = errors.New("bad request")
)

// APIError is a non-2xx answer from the server carrying its JSON error payload.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap exposes the sentinel matching the status so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return ErrBadRequest
	case http.StatusUnauthorized:
		if e.Code == "invalid_credentials" {
			return ErrInvalidCredentials
		}
		return ErrUnauthorized
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusServiceUnavailable:
		return ErrMailUnavailable
	}
	if e.Status >= http.StatusInternalServerError {
		return ErrUnavailable
	}
	return nil
}
