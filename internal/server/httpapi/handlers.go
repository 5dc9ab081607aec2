package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/cashkeeper/internal/common"
	"github.com/dmitrijs2005/cashkeeper/internal/logging"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success      bool   `json:"success"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn"`
	TokenType    string `json:"tokenType"`
	Message      string `json:"message,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	Success     bool   `json:"success"`
	AccessToken string `json:"accessToken,omitempty"`
	ExpiresIn   int64  `json:"expiresIn"`
	Message     string `json:"message,omitempty"`
}

type statusResponse struct {
	Status         string `json:"status"`
	User           string `json:"user,omitempty"`
	TokenExpiresAt string `json:"tokenExpiresAt,omitempty"`
}

type cashValue struct {
	Provider      string      `json:"provider"`
	CurrencyTitle string      `json:"currencyTitle"`
	Value         json.Number `json:"value"`
}

type cashResponse struct {
	CashValues []cashValue `json:"cashValues"`
}

func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.badBody(w, r, err)
		return
	}

	pair, err := a.deps.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Success:      true,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int64(pair.ExpiresIn / time.Second),
		TokenType:    "Bearer",
		Message:      "Login successful",
	})
}

func (a *API) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		a.badBody(w, r, err)
		return
	}

	pair, err := a.deps.Auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		Success:     true,
		AccessToken: pair.AccessToken,
		ExpiresIn:   int64(pair.ExpiresIn / time.Second),
		Message:     "Token refreshed",
	})
}

func (a *API) Status(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, statusResponse{
		Status:         "authenticated",
		User:           session.UserID,
		TokenExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (a *API) Cash(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFromContext(r.Context())

	balances, err := a.deps.Cash.Balances(r.Context())
	if err != nil {
		a.logger.Warn(r.Context(), "cash request failed", "user", logging.SafeValue(session.UserID), "error", err)
		writeError(w, err)
		return
	}

	resp := cashResponse{CashValues: make([]cashValue, 0, len(balances))}
	for _, b := range balances {
		resp.CashValues = append(resp.CashValues, cashValue{
			Provider:      b.Provider,
			CurrencyTitle: b.Currency,
			Value:         json.Number(b.Value.String()),
		})
	}

	a.logger.Info(r.Context(), "cash served", "user", logging.SafeValue(session.UserID), "currencies", len(resp.CashValues))
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) badBody(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(w, http.StatusRequestEntityTooLarge, codeInvalidRequest, "Request body too large")
		return
	}
	a.logger.Debug(r.Context(), "malformed request body", "error", err)
	writeError(w, common.ErrInvalidRequest)
}
