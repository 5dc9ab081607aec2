package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/cashkeeper/internal/common"
)

// error codes of the JSON error payload
const (
	codeInvalidRequest     = "invalid_request"
	codeInvalidCredentials = "invalid_credentials"
	codeInvalidToken       = "invalid_token"
	codeInvalidUser        = "invalid_user"
	codeServiceUnavailable = "service_unavailable"
	codeInternal           = "internal_error"
	codeRateLimited        = "rate_limited"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeError maps a service error to its status and payload. Messages are
// fixed so internal details never reach the client.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrInvalidRequest):
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request")
	case errors.Is(err, common.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, codeInvalidCredentials, "Invalid username or password")
	case errors.Is(err, common.ErrUnknownUser):
		respondError(w, http.StatusUnauthorized, codeInvalidUser, "User no longer valid")
	case errors.Is(err, common.ErrInvalidToken):
		respondError(w, http.StatusUnauthorized, codeInvalidToken, "Invalid or expired token")
	case errors.Is(err, common.ErrServiceUnavailable):
		respondError(w, http.StatusServiceUnavailable, codeServiceUnavailable, "Mail service not available")
	default:
		respondError(w, http.StatusInternalServerError, codeInternal, "Internal error")
	}
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}
