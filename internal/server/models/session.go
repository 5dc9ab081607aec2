package models

import "time"

// TokenType discriminates session tokens.
type TokenType int

const (
	TokenTypeAccess TokenType = iota
	TokenTypeRefresh
)

func (t TokenType) String() string {
	switch t {
	case TokenTypeAccess:
		return "access"
	case TokenTypeRefresh:
		return "refresh"
	default:
		return "unknown"
	}
}

// Session is the validated content of a session token.
type Session struct {
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	TokenType TokenType
}

// TokenPair is the result of a successful login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the access token lifetime.
	ExpiresIn time.Duration
}
