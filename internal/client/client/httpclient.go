package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/cashkeeper/internal/common"
)

const maxResponseBytes = 1 << 20

// HTTPClient is a token-holding client of the cashkeeper API.
type HTTPClient struct {
	baseURL *url.URL
	http    *http.Client
	now     func() time.Time

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

// Option customises an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) { h.http = c }
}

// WithClock overrides the time source used for token expiry bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(h *HTTPClient) { h.now = now }
}

// NewHTTPClient validates baseURL and returns a client whose requests are
// bounded by timeout.
func NewHTTPClient(baseURL string, timeout time.Duration, opts ...Option) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("server url %q must be an absolute http(s) url", baseURL)
	}

	c := &HTTPClient{
		baseURL: u,
		http:    &http.Client{Timeout: timeout},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// LoggedIn reports whether a token pair is held.
func (c *HTTPClient) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken != ""
}

// AccessExpiresAt returns the local estimate of the access token expiry.
func (c *HTTPClient) AccessExpiresAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiresAt
}

// Logout forgets the held tokens. Nothing is sent to the server.
func (c *HTTPClient) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken, c.refreshToken, c.expiresAt = "", "", time.Time{}
}

func (c *HTTPClient) Login(ctx context.Context, username, password string) error {
	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/login", "", loginRequest{Username: username, Password: password}, &resp); err != nil {
		return err
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return fmt.Errorf("login response without tokens: %w", ErrUnavailable)
	}

	c.mu.Lock()
	c.accessToken = resp.AccessToken
	c.refreshToken = resp.RefreshToken
	c.expiresAt = c.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	c.mu.Unlock()
	return nil
}

// Refresh exchanges the held refresh token for a new access token. The
// refresh token itself is kept.
func (c *HTTPClient) Refresh(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.refreshToken
	c.mu.Unlock()
	if refresh == "" {
		return ErrUnauthorized
	}

	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/refresh", "", refreshRequest{RefreshToken: refresh}, &resp); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			c.Logout()
		}
		return err
	}
	if resp.AccessToken == "" {
		return fmt.Errorf("refresh response without token: %w", ErrUnavailable)
	}

	c.mu.Lock()
	c.accessToken = resp.AccessToken
	c.expiresAt = c.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	c.mu.Unlock()
	return nil
}

func (c *HTTPClient) Status(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.doAuthorized(ctx, "/api/v1/status", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *HTTPClient) Cash(ctx context.Context) ([]CashValue, error) {
	var resp cashResponse
	if err := c.doAuthorized(ctx, "/api/v1/cash", &resp); err != nil {
		return nil, err
	}
	return resp.CashValues, nil
}

// Ping checks the server readiness endpoint.
func (c *HTTPClient) Ping(ctx context.Context) error {
	err := c.do(ctx, http.MethodGet, "/readyz", "", nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %s", ErrUnavailable, apiErr.Error())
	}
	return err
}

// doAuthorized issues a GET with the access token, refreshing once when the
// server rejects the token.
func (c *HTTPClient) doAuthorized(ctx context.Context, path string, out any) error {
	c.mu.Lock()
	token := c.accessToken
	c.mu.Unlock()
	if token == "" {
		return ErrUnauthorized
	}

	err := c.do(ctx, http.MethodGet, path, token, nil, out)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || apiErr.Code != "invalid_token" {
		return err
	}

	if err := c.Refresh(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	token = c.accessToken
	c.mu.Unlock()
	return c.do(ctx, http.MethodGet, path, token, nil, out)
}

func (c *HTTPClient) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var er errorResponse
		if json.Unmarshal(data, &er) == nil {
			apiErr.Code, apiErr.Message = er.Error, er.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
