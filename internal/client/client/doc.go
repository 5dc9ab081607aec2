// Package client talks to the cashkeeper HTTP API on behalf of the CLI.
//
// # Overview
//
// HTTPClient wraps the JSON endpoints under /api/v1: Login, Refresh, Status
// and Cash, plus a readiness Ping. Tokens obtained by Login are kept in memory
// only. A request rejected with invalid_token is retried once after a
// transparent refresh.
//
// # Error Handling
//
// Transport failures surface as ErrUnavailable. Non-2xx answers are returned
// as *APIError, which unwraps to ErrUnauthorized, ErrInvalidCredentials,
// ErrMailUnavailable, ErrRateLimited or ErrBadRequest so callers can match
// with errors.Is.
//
// HTTPClient is safe for concurrent use.
package client
