// Package auth issues and validates the API's signed session tokens.
//
// Tokens are HS256 JWTs carrying the issuer, subject, issue and expiry times
// and a user_id claim. Refresh tokens additionally carry token_type=refresh;
// a token without token_type is an access token.
package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/cashkeeper/internal/common"
	"github.com/dmitrijs2005/cashkeeper/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

const (
	Issuer = "cashkeeper-api"

	DefaultAccessTTL  = 24 * time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour

	// MinSecretLength is the minimum accepted signing key size in bytes.
	MinSecretLength = 32

	refreshTokenType = "refresh"
)

// Claims is the claim set of a session token.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"user_id"`
	TokenType string `json:"token_type,omitempty"`
}

// TokenService signs and verifies session tokens with a single HMAC key.
// It holds no per-token state and is safe for concurrent use.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// Option configures a TokenService.
type Option func(*TokenService)

// WithClock overrides the time source used for issuing and validating.
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) { s.now = now }
}

// NewTokenService returns a TokenService signing with secret. A secret shorter
// than MinSecretLength bytes is a configuration error.
func NewTokenService(secret []byte, opts ...Option) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: jwt secret must be at least %d bytes", common.ErrConfiguration, MinSecretLength)
	}
	s := &TokenService{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// IssueAccessToken mints an access token for userID valid for ttl.
func (s *TokenService) IssueAccessToken(userID string, ttl time.Duration) (string, error) {
	return s.issue(userID, ttl, models.TokenTypeAccess)
}

// IssueRefreshToken mints a refresh token for userID valid for ttl.
func (s *TokenService) IssueRefreshToken(userID string, ttl time.Duration) (string, error) {
	return s.issue(userID, ttl, models.TokenTypeRefresh)
}

func (s *TokenService) issue(userID string, ttl time.Duration, tt models.TokenType) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("%w: empty user id", common.ErrInvalidRequest)
	}

	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
	}
	if tt == models.TokenTypeRefresh {
		claims.TokenType = refreshTokenType
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Validate verifies signature, issuer and expiry and returns the session the
// token describes. Any failure is reported as common.ErrInvalidToken.
func (s *TokenService) Validate(tokenString string) (*models.Session, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, common.ErrInvalidToken
	}

	if strings.TrimSpace(claims.UserID) == "" {
		return nil, common.ErrInvalidToken
	}

	tt, ok := decodeTokenType(claims.TokenType)
	if !ok {
		return nil, common.ErrInvalidToken
	}

	session := &models.Session{
		UserID:    claims.UserID,
		ExpiresAt: claims.ExpiresAt.Time,
		TokenType: tt,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	return session, nil
}

// ValidateAs is Validate plus a token type check. An access token is never
// accepted where a refresh token is required and vice versa.
func (s *TokenService) ValidateAs(tokenString string, want models.TokenType) (*models.Session, error) {
	session, err := s.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	if session.TokenType != want {
		return nil, common.ErrInvalidToken
	}
	return session, nil
}

func decodeTokenType(v string) (models.TokenType, bool) {
	switch v {
	case "":
		return models.TokenTypeAccess, true
	case refreshTokenType:
		return models.TokenTypeRefresh, true
	default:
		return 0, false
	}
}
