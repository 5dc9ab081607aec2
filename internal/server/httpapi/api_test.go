package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/cashkeeper/internal/common"
	"github.com/dmitrijs2005/cashkeeper/internal/logging"
	"github.com/dmitrijs2005/cashkeeper/internal/server/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	loginErr   error
	refreshErr error
	sessions   map[string]*models.Session
}

func (f *fakeAuth) Login(ctx context.Context, username, password string) (*models.TokenPair, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &models.TokenPair{AccessToken: "acc-" + username, RefreshToken: "ref-" + username, ExpiresIn: time.Hour}, nil
}

func (f *fakeAuth) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &models.TokenPair{AccessToken: "acc2", ExpiresIn: time.Hour}, nil
}

func (f *fakeAuth) Authenticate(ctx context.Context, accessToken string) (*models.Session, error) {
	s, ok := f.sessions[accessToken]
	if !ok {
		return nil, common.ErrInvalidToken
	}
	return s, nil
}

type fakeCash struct {
	balances []models.CurrencyBalance
	err      error
}

func (f *fakeCash) Balances(ctx context.Context) ([]models.CurrencyBalance, error) {
	return f.balances, f.err
}

type fakeMailAuth struct {
	code string
	err  error
}

func (f *fakeMailAuth) AuthCodeURL(state string) string {
	return "https://accounts.example/consent?state=" + state
}

func (f *fakeMailAuth) HandleCallback(ctx context.Context, code string) error {
	f.code = code
	return f.err
}

type fakeOperators map[string]string

func (f fakeOperators) Validate(ctx context.Context, username, password string) bool {
	p, ok := f[username]
	return ok && p == password
}

var validSession = &models.Session{
	UserID:    "alice",
	ExpiresAt: time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC),
	TokenType: models.TokenTypeAccess,
}

func testDeps() Deps {
	return Deps{
		Auth:      &fakeAuth{sessions: map[string]*models.Session{"good": validSession}},
		Cash:      &fakeCash{},
		Mail:      &fakeMailAuth{},
		Operators: fakeOperators{"op": "secret"},
	}
}

func newTestAPI(t *testing.T, deps Deps, opts Options) http.Handler {
	t.Helper()
	if opts.AuthRatePerMinute == 0 {
		opts.AuthRatePerMinute = 1000
	}
	return New(deps, opts, &logging.Nop{}).Handler()
}

func do(h http.Handler, method, target string, body io.Reader, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	dec := json.NewDecoder(rr.Body)
	dec.UseNumber()
	require.NoError(t, dec.Decode(&m))
	return m
}

func TestLogin_Success(t *testing.T) {
	h := newTestAPI(t, testDeps(), Options{})

	rr := do(h, http.MethodPost, "/api/v1/login", strings.NewReader(`{"username":"alice","password":"pw"}`), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	body := decodeBody(t, rr)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "acc-alice", body["accessToken"])
	assert.Equal(t, "ref-alice", body["refreshToken"])
	assert.Equal(t, json.Number("3600"), body["expiresIn"])
	assert.Equal(t, "Bearer", body["tokenType"])
}

func TestLogin_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"malformed json", `{"username":`, nil, http.StatusBadRequest, codeInvalidRequest},
		{"blank input", `{"username":"","password":""}`, common.ErrInvalidRequest, http.StatusBadRequest, codeInvalidRequest},
		{"bad credentials", `{"username":"alice","password":"x"}`, common.ErrInvalidCredentials, http.StatusUnauthorized, codeInvalidCredentials},
		{"internal", `{"username":"alice","password":"x"}`, errors.New("db down"), http.StatusInternalServerError, codeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := testDeps()
			deps.Auth = &fakeAuth{loginErr: tt.err}
			h := newTestAPI(t, deps, Options{})

			rr := do(h, http.MethodPost, "/api/v1/login", strings.NewReader(tt.body), nil)
			assert.Equal(t, tt.wantCode, rr.Code)
			body := decodeBody(t, rr)
			assert.Equal(t, tt.wantErr, body["error"])
			assert.NotContains(t, rr.Body.String(), "db down")
		})
	}
}

func TestLogin_BodyTooLarge(t *testing.T) {
	h := newTestAPI(t, testDeps(), Options{MaxBodyBytes: 16})

	rr := do(h, http.MethodPost, "/api/v1/login", strings.NewReader(`{"username":"alice","password":"`+strings.Repeat("x", 64)+`"}`), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestLogin_WrongMethod(t *testing.T) {
	h := newTestAPI(t, testDeps(), Options{})
	rr := do(h, http.MethodGet, "/api/v1/login", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRefresh(t *testing.T) {
	h := newTestAPI(t, testDeps(), Options{})
	rr := do(h, http.MethodPost, "/api/v1/refresh", strings.NewReader(`{"refreshToken":"r"}`), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "acc2", body["accessToken"])
	assert.Equal(t, json.Number("3600"), body["expiresIn"])
	assert.NotContains(t, body, "refreshToken")

	for err, code := range map[error]string{
		common.ErrUnknownUser:    codeInvalidUser,
		common.ErrInvalidToken:   codeInvalidToken,
		common.ErrInvalidRequest: codeInvalidRequest,
	} {
		deps := testDeps()
		deps.Auth = &fakeAuth{refreshErr: err}
		rr := do(newTestAPI(t, deps, Options{}), http.MethodPost, "/api/v1/refresh", strings.NewReader(`{"refreshToken":"r"}`), nil)
		assert.Equal(t, code, decodeBody(t, rr)["error"])
	}
}

func TestStatus(t *testing.T) {
	h := newTestAPI(t, testDeps(), Options{})

	rr := do(h, http.MethodGet, "/api/v1/status", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("WWW-Authenticate"))
	assert.Equal(t, codeInvalidToken, decodeBody(t, rr)["error"])

	rr = do(h, http.MethodGet, "/api/v1/status", nil, map[string]string{"Authorization": "Bearer bad"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(h, http.MethodGet, "/api/v1/status", nil, map[string]string{"Authorization": "bearer good"})
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "authenticated", body["status"])
	assert.Equal(t, "alice", body["user"])
	assert.Equal(t, "2030-01-02T03:04:05Z", body["tokenExpiresAt"])
}

func TestCash(t *testing.T) {
	deps := testDeps()
	deps.Cash = &fakeCash{balances: []models.CurrencyBalance{
		{Provider: "ukrsib", Currency: "UAH", Value: decimal.RequireFromString("1234.50")},
		{Provider: "ukrsib", Currency: "USD", Value: decimal.RequireFromString("-20")},
	}}
	h := newTestAPI(t, deps, Options{})

	rr := do(h, http.MethodGet, "/api/v1/cash", nil, map[string]string{"Authorization": "Bearer good"})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		CashValues []struct {
			Provider      string      `json:"provider"`
			CurrencyTitle string      `json:"currencyTitle"`
			Value         json.Number `json:"value"`
		} `json:"cashValues"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.CashValues, 2)
	assert.Equal(t, "UAH", resp.CashValues[0].CurrencyTitle)
	assert.Equal(t, "ukrsib", resp.CashValues[0].Provider)
	assert.Equal(t, json.Number("1234.5"), resp.CashValues[0].Value)
	assert.Equal(t, json.Number("-20"), resp.CashValues[1].Value)
	assert.Contains(t, rr.Body.String(), `"value":1234.5`)
}

func TestCash_Errors(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantErr  string
	}{
		{common.ErrServiceUnavailable, http.StatusServiceUnavailable, codeServiceUnavailable},
		{common.ErrorInternal, http.StatusInternalServerError, codeInternal},
	}
	for _, tt := range tests {
		deps := testDeps()
		deps.Cash = &fakeCash{err: tt.err}
		rr := do(newTestAPI(t, deps, Options{}), http.MethodGet, "/api/v1/cash", nil, map[string]string{"Authorization": "Bearer good"})
		assert.Equal(t, tt.wantCode, rr.Code)
		assert.Equal(t, tt.wantErr, decodeBody(t, rr)["error"])
	}

	rr := do(newTestAPI(t, testDeps(), Options{}), http.MethodGet, "/api/v1/cash", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHealthAndReady(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	deps := testDeps()
	deps.Ready = ReadyProbe{DB: db}
	h := newTestAPI(t, deps, Options{})

	rr := do(h, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	mock.ExpectPing()
	rr = do(h, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	mock.ExpectPing().WillReturnError(errors.New("conn refused"))
	rr = do(h, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.NotContains(t, rr.Body.String(), "conn refused")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadyProbe_NoDB(t *testing.T) {
	assert.NoError(t, ReadyProbe{}.Check(context.Background()))
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestAPI(t, testDeps(), Options{})

	do(h, http.MethodGet, "/healthz", nil, nil)
	do(h, http.MethodGet, "/nope", nil, nil)

	rr := do(h, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	out := rr.Body.String()
	assert.Contains(t, out, `http_requests_total{method="GET",path="GET /healthz",status="200"} 1`)
	assert.Contains(t, out, `path="unmatched",status="404"`)
	assert.Contains(t, out, "go_goroutines")
}

func TestMiddleware_HeadersAndRequestID(t *testing.T) {
	h := newTestAPI(t, testDeps(), Options{})

	rr := do(h, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rr.Header().Get("Strict-Transport-Security"))
	assert.NotEmpty(t, rr.Header().Get("Content-Security-Policy"))
	assert.Len(t, rr.Header().Get(common.RequestIDHeaderName), 36)

	rr = do(h, http.MethodGet, "/healthz", nil, map[string]string{common.RequestIDHeaderName: "trace-42"})
	assert.Equal(t, "trace-42", rr.Header().Get(common.RequestIDHeaderName))

	rr = do(h, http.MethodGet, "/healthz", nil, map[string]string{common.RequestIDHeaderName: "bad id\n"})
	assert.Len(t, rr.Header().Get(common.RequestIDHeaderName), 36)
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewJSONLogger(&buf, "info")

	h := RequestID(AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), logger, nil))

	req := httptest.NewRequest(http.MethodGet, "/log-test", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	for _, key := range []string{"msg", "request_id", "method", "path", "status", "duration_ms", "remote"} {
		assert.Contains(t, entry, key)
	}
	assert.EqualValues(t, http.StatusTeapot, entry["status"])
	assert.Equal(t, "127.0.0.1", entry["remote"])
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc", "abc", false},
		{"bearer  abc ", "abc", false},
		{"", "", true},
		{"Basic abc", "", true},
		{"Bearer ", "", true},
		{"Bear", "", true},
	}
	for _, tt := range tests {
		got, err := extractBearerToken(tt.header)
		if tt.wantErr {
			assert.Error(t, err, tt.header)
			continue
		}
		assert.NoError(t, err, tt.header)
		assert.Equal(t, tt.want, got)
	}
}

func TestClientIP(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8"), netip.MustParsePrefix("192.0.2.1/32")}

	tests := []struct {
		name    string
		remote  string
		xff     []string
		trusted []netip.Prefix
		want    string
	}{
		{name: "peer only", remote: "10.0.0.1:5555", want: "10.0.0.1"},
		{name: "xff ignored without trusted proxies", remote: "198.51.100.9:5555", xff: []string{"203.0.113.7"}, want: "198.51.100.9"},
		{name: "xff ignored from untrusted peer", remote: "198.51.100.9:5555", xff: []string{"203.0.113.7"}, trusted: trusted, want: "198.51.100.9"},
		{name: "trusted peer uses last hop", remote: "10.0.0.1:5555", xff: []string{"203.0.113.7"}, trusted: trusted, want: "203.0.113.7"},
		{name: "spoofed left entries skipped", remote: "10.0.0.1:5555", xff: []string{"1.1.1.1, 203.0.113.7, 10.2.3.4"}, trusted: trusted, want: "203.0.113.7"},
		{name: "repeated headers joined", remote: "192.0.2.1:5555", xff: []string{"1.1.1.1", "203.0.113.7"}, trusted: trusted, want: "203.0.113.7"},
		{name: "all hops trusted", remote: "10.0.0.1:5555", xff: []string{"10.9.9.9"}, trusted: trusted, want: "10.0.0.1"},
		{name: "malformed hop", remote: "10.0.0.1:5555", xff: []string{"203.0.113.7, garbage"}, trusted: trusted, want: "10.0.0.1"},
		{name: "mapped v4 peer", remote: "[::ffff:10.0.0.1]:5555", xff: []string{"203.0.113.7"}, trusted: trusted, want: "203.0.113.7"},
		{name: "no port", remote: "10.0.0.1", want: "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for _, v := range tt.xff {
				r.Header.Add("X-Forwarded-For", v)
			}
			assert.Equal(t, tt.want, clientIP(r, tt.trusted))
		})
	}
}
