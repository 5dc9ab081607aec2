package client

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status describes the session the server sees for the current access token.
type Status struct {
	Status         string    `json:"status"`
	User           string    `json:"user"`
	TokenExpiresAt time.Time `json:"tokenExpiresAt"`
}

// CashValue is one reconciled balance.
type CashValue struct {
	Provider      string          `json:"provider"`
	CurrencyTitle string          `json:"currencyTitle"`
	Value         decimal.Decimal `json:"value"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Success      bool   `json:"success"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	Message      string `json:"message"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type cashResponse struct {
	CashValues []CashValue `json:"cashValues"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
