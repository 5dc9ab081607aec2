// Package httpapi is the HTTP transport of the cashkeeper server: the JSON
// API under /api/v1, the operator OAuth pages, health probes and metrics.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"net/netip"

	"github.com/dmitrijs2005/cashkeeper/internal/logging"
	"github.com/dmitrijs2005/cashkeeper/internal/server/models"
)

// DefaultMaxBodyBytes caps request bodies.
const DefaultMaxBodyBytes = 1 << 20

// Authenticator is the session side of the API.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Authenticate(ctx context.Context, accessToken string) (*models.Session, error)
}

// CashProvider computes reconciled balances.
type CashProvider interface {
	Balances(ctx context.Context) ([]models.CurrencyBalance, error)
}

// MailAuthorizer runs the mail provider's OAuth consent flow.
type MailAuthorizer interface {
	AuthCodeURL(state string) string
	HandleCallback(ctx context.Context, code string) error
}

// OperatorChecker verifies the operator who links the mailbox.
type OperatorChecker interface {
	Validate(ctx context.Context, username, password string) bool
}

// ReadyProbe checks readiness, e.g. by pinging the database.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps are the collaborators served by the API.
type Deps struct {
	Auth      Authenticator
	Cash      CashProvider
	Mail      MailAuthorizer
	Operators OperatorChecker
	Ready     ReadyProbe
}

// Options tune the middleware.
type Options struct {
	// AuthRatePerMinute and AuthBurst bound login attempts per client IP.
	AuthRatePerMinute int
	AuthBurst         int
	MaxBodyBytes      int64
	// SecureCookies marks the OAuth state cookie Secure.
	SecureCookies bool
	// TrustedProxies are the peers whose X-Forwarded-For is believed when
	// resolving the client IP.
	TrustedProxies []netip.Prefix
}

// API is the HTTP layer.
type API struct {
	mux     *http.ServeMux
	deps    Deps
	opts    Options
	logger  logging.Logger
	metrics *Metrics
	limiter *rateLimiter
}

func New(deps Deps, opts Options, logger logging.Logger) *API {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.AuthRatePerMinute <= 0 {
		opts.AuthRatePerMinute = 10
	}
	if opts.AuthBurst <= 0 {
		opts.AuthBurst = opts.AuthRatePerMinute
	}

	a := &API{
		mux:     http.NewServeMux(),
		deps:    deps,
		opts:    opts,
		logger:  logger.With("module", "http"),
		metrics: NewMetrics(),
		limiter: newRateLimiter(opts.AuthRatePerMinute, opts.AuthBurst, opts.TrustedProxies),
	}

	limited := func(h http.HandlerFunc) http.Handler {
		return a.limiter.middleware(h)
	}

	a.mux.Handle("POST /api/v1/login", limited(a.Login))
	a.mux.Handle("POST /api/v1/refresh", limited(a.Refresh))
	a.mux.Handle("GET /api/v1/status", a.requireBearer(a.Status))
	a.mux.Handle("GET /api/v1/cash", a.requireBearer(a.Cash))

	a.mux.HandleFunc("GET /auth", a.AuthForm)
	a.mux.Handle("POST /auth", limited(a.AuthSubmit))
	a.mux.HandleFunc("GET /oauth2callback", a.OAuthCallback)

	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.Handle("GET /metrics", a.metrics.Handler())

	return a
}

// Handler returns the mux wrapped in the middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.metrics.Instrument(h)
	h = MaxBodyBytes(h, a.opts.MaxBodyBytes)
	h = SecurityHeaders(h)
	h = AccessLog(h, a.logger, a.opts.TrustedProxies)
	return RequestID(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": "cashkeeper"})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Ready.Check(r.Context()); err != nil {
		a.logger.Warn(r.Context(), "readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
