// Package services contains server-side business logic. This file implements
// AuthService, which handles login, access token refresh and bearer token
// authentication.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/cashkeeper/internal/common"
	"github.com/dmitrijs2005/cashkeeper/internal/logging"
	"github.com/dmitrijs2005/cashkeeper/internal/server/models"
)

// CredentialChecker verifies API principals.
type CredentialChecker interface {
	Validate(ctx context.Context, username, password string) bool
	IsKnownUser(ctx context.Context, username string) bool
}

// TokenIssuer signs and verifies session tokens.
type TokenIssuer interface {
	IssueAccessToken(userID string, ttl time.Duration) (string, error)
	IssueRefreshToken(userID string, ttl time.Duration) (string, error)
	ValidateAs(token string, want models.TokenType) (*models.Session, error)
}

// AuthService provides authentication-related operations:
// - Login: verify credentials and mint an access/refresh pair
// - Refresh: mint a new access token from a refresh token
// - Authenticate: resolve a bearer access token to a session
type AuthService struct {
	creds      CredentialChecker
	tokens     TokenIssuer
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     logging.Logger
}

// NewAuthService constructs an AuthService.
func NewAuthService(creds CredentialChecker, tokens TokenIssuer, accessTTL, refreshTTL time.Duration, logger logging.Logger) *AuthService {
	return &AuthService{
		creds:      creds,
		tokens:     tokens,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     logger.With("module", "auth"),
	}
}

// AccessTTL returns the lifetime of issued access tokens.
func (s *AuthService) AccessTTL() time.Duration { return s.accessTTL }

// Login verifies username and password and returns a new TokenPair.
// Blank input yields ErrInvalidRequest, a mismatch ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.TokenPair, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return nil, fmt.Errorf("%w: username and password are required", common.ErrInvalidRequest)
	}

	if !s.creds.Validate(ctx, username, password) {
		s.logger.Warn(ctx, "login failed", "user", logging.SafeValue(username))
		return nil, common.ErrInvalidCredentials
	}

	access, err := s.tokens.IssueAccessToken(username, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: issue access token: %v", common.ErrorInternal, err)
	}
	refresh, err := s.tokens.IssueRefreshToken(username, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: issue refresh token: %v", common.ErrorInternal, err)
	}

	s.logger.Info(ctx, "login succeeded", "user", logging.SafeValue(username))
	return &models.TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: s.accessTTL}, nil
}

// Refresh validates a refresh token and returns a new access token. The
// refresh token itself is not rotated. A principal removed from the
// registry since login yields ErrUnknownUser.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, fmt.Errorf("%w: refresh token is required", common.ErrInvalidRequest)
	}

	session, err := s.tokens.ValidateAs(refreshToken, models.TokenTypeRefresh)
	if err != nil {
		return nil, common.ErrInvalidToken
	}

	if !s.creds.IsKnownUser(ctx, session.UserID) {
		s.logger.Warn(ctx, "refresh for unknown user", "user", logging.SafeValue(session.UserID))
		return nil, common.ErrUnknownUser
	}

	access, err := s.tokens.IssueAccessToken(session.UserID, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: issue access token: %v", common.ErrorInternal, err)
	}
	return &models.TokenPair{AccessToken: access, ExpiresIn: s.accessTTL}, nil
}

// Authenticate resolves a bearer access token. Refresh tokens are rejected.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*models.Session, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, common.ErrInvalidToken
	}
	session, err := s.tokens.ValidateAs(accessToken, models.TokenTypeAccess)
	if err != nil {
		if !errors.Is(err, common.ErrInvalidToken) {
			s.logger.Error(ctx, "token validation failed", "error", err)
		}
		return nil, common.ErrInvalidToken
	}
	return session, nil
}
