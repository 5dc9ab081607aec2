package mail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/cashkeeper/internal/common"
	"github.com/dmitrijs2005/cashkeeper/internal/logging"
	"github.com/dmitrijs2005/cashkeeper/internal/server/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ErrNoSession means there is no usable mail credential: nothing is vaulted,
// or the credential expired and could not be refreshed.
var ErrNoSession = errors.New("no mail session")

// CredentialVault is the part of the vault used by Gmail.
type CredentialVault interface {
	Save(ctx context.Context, userID string, cred models.OAuthCredential) error
	Load(ctx context.Context, userID string) (models.OAuthCredential, bool)
}

// LoadOAuthConfig reads a Google client secret JSON file and returns a
// read-only Gmail OAuth2 config redirecting to redirectURI.
func LoadOAuthConfig(clientSecretFile, redirectURI string) (*oauth2.Config, error) {
	b, err := os.ReadFile(clientSecretFile)
	if err != nil {
		return nil, fmt.Errorf("%w: read client secret: %v", common.ErrConfiguration, err)
	}
	cfg, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("%w: parse client secret: %v", common.ErrConfiguration, err)
	}
	cfg.RedirectURL = redirectURI
	return cfg, nil
}

// Gmail is safe for concurrent use.
type Gmail struct {
	oauth  *oauth2.Config
	vault  CredentialVault
	userID string
	query  string
	logger logging.Logger

	now           func() time.Time
	clientOptions []option.ClientOption
	fetchAttempts int
	fetchDelay    time.Duration
}

type Option func(*Gmail)

// WithClientOptions appends Gmail API client options, e.g. a custom endpoint.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(g *Gmail) { g.clientOptions = append(g.clientOptions, opts...) }
}

// WithRetry sets how many times a Gmail call is attempted and the base delay
// between attempts.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(g *Gmail) { g.fetchAttempts, g.fetchDelay = attempts, delay }
}

func WithClock(now func() time.Time) Option {
	return func(g *Gmail) { g.now = now }
}

func NewGmail(cfg *oauth2.Config, vault CredentialVault, userID, query string, logger logging.Logger, opts ...Option) *Gmail {
	g := &Gmail{
		oauth:         cfg,
		vault:         vault,
		userID:        userID,
		query:         query,
		logger:        logger.With("module", "gmail"),
		now:           time.Now,
		fetchAttempts: 3,
		fetchDelay:    200 * time.Millisecond,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// AuthCodeURL returns the Google consent URL. Offline access with a forced
// approval prompt makes Google issue a refresh token on every consent.
func (g *Gmail) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// HandleCallback exchanges an authorization code and vaults the resulting
// credential.
func (g *Gmail) HandleCallback(ctx context.Context, code string) error {
	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		g.logger.Error(ctx, "oauth code exchange failed", "error", err)
		return fmt.Errorf("exchange code: %w", err)
	}

	if err := g.vault.Save(ctx, g.userID, credentialFromToken(tok, "")); err != nil {
		return err
	}

	g.logger.Info(ctx, "mail session established", "expires", tok.Expiry)
	return nil
}

// HasValidSession reports whether a vaulted credential is unexpired. An
// expired credential carrying a refresh token is refreshed once and the new
// credential saved.
func (g *Gmail) HasValidSession(ctx context.Context) bool {
	cred, ok := g.vault.Load(ctx, g.userID)
	if !ok {
		return false
	}
	if !cred.Expired(g.now().UnixMilli()) {
		return true
	}
	if cred.RefreshToken == "" {
		g.logger.Debug(ctx, "mail credential expired without refresh token")
		return false
	}

	tok, err := g.oauth.TokenSource(ctx, tokenFromCredential(cred)).Token()
	if err != nil {
		g.logger.Warn(ctx, "mail credential refresh failed", "error", err)
		return false
	}
	if err := g.vault.Save(ctx, g.userID, credentialFromToken(tok, cred.RefreshToken)); err != nil {
		return false
	}

	g.logger.Info(ctx, "mail credential refreshed", "expires", tok.Expiry)
	return true
}

// ListRecentMessages returns up to max messages matching the configured
// query, newest first.
func (g *Gmail) ListRecentMessages(ctx context.Context, max int64) ([]string, error) {
	if max < 1 {
		return nil, fmt.Errorf("%w: max must be positive", common.ErrInvalidRequest)
	}

	cred, ok := g.vault.Load(ctx, g.userID)
	if !ok {
		return nil, ErrNoSession
	}
	if cred.Expired(g.now().UnixMilli()) && cred.RefreshToken == "" {
		return nil, ErrNoSession
	}

	ts := g.persistingTokenSource(ctx, cred)
	svc, err := g.newService(ctx, ts)
	if err != nil {
		return nil, err
	}

	list, err := common.RetryWithResult(ctx, g.fetchAttempts, g.fetchDelay, retryable, func() (*gmail.ListMessagesResponse, error) {
		return svc.Users.Messages.List("me").Q(g.query).MaxResults(max).Context(ctx).Do()
	})
	if err != nil {
		return nil, classify(err)
	}

	g.logger.Debug(ctx, "listed messages", "count", len(list.Messages))

	out := make([]string, 0, len(list.Messages))
	for _, m := range list.Messages {
		full, err := common.RetryWithResult(ctx, g.fetchAttempts, g.fetchDelay, retryable, func() (*gmail.Message, error) {
			return svc.Users.Messages.Get("me", m.Id).Format("full").Context(ctx).Do()
		})
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, renderMessage(full))
	}
	return out, nil
}

func (g *Gmail) newService(ctx context.Context, ts oauth2.TokenSource) (*gmail.Service, error) {
	opts := append([]option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}, g.clientOptions...)
	return gmail.NewService(ctx, opts...)
}

// persistingTokenSource writes refreshed tokens back to the vault.
func (g *Gmail) persistingTokenSource(ctx context.Context, cred models.OAuthCredential) oauth2.TokenSource {
	return &persistingSource{
		base: g.oauth.TokenSource(ctx, tokenFromCredential(cred)),
		last: cred.AccessToken,
		save: func(tok *oauth2.Token) {
			if err := g.vault.Save(ctx, g.userID, credentialFromToken(tok, cred.RefreshToken)); err != nil {
				g.logger.Warn(ctx, "saving refreshed mail credential failed", "error", err)
			}
		},
	}
}

type persistingSource struct {
	base oauth2.TokenSource
	save func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		p.last = tok.AccessToken
		p.save(tok)
	}
	return tok, nil
}

func credentialFromToken(tok *oauth2.Token, prevRefresh string) models.OAuthCredential {
	cred := models.OAuthCredential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	// Google omits the refresh token on refresh responses.
	if cred.RefreshToken == "" {
		cred.RefreshToken = prevRefresh
	}
	if !tok.Expiry.IsZero() {
		cred.ExpiresAtMillis = tok.Expiry.UnixMilli()
	}
	return cred
}

func tokenFromCredential(cred models.OAuthCredential) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  cred.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: cred.RefreshToken,
		Expiry:       time.UnixMilli(cred.ExpiresAtMillis),
	}
}

// retryable reports whether a Gmail call error is worth another attempt.
// Client errors other than 429 and failed token refreshes are permanent.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code >= http.StatusInternalServerError || gerr.Code == http.StatusTooManyRequests
	}
	return true
}

// classify maps authorization failures to ErrNoSession.
func classify(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return fmt.Errorf("%w: token refresh: %v", ErrNoSession, err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden) {
		return fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	return fmt.Errorf("gmail: %w", err)
}
