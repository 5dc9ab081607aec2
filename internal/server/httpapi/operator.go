package httpapi

import (
	"crypto/subtle"
	"html/template"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/cashkeeper/internal/common"
	"github.com/dmitrijs2005/cashkeeper/internal/logging"
)

const (
	stateCookieName = "cashkeeper_oauth_state"
	stateCookieAge  = 600

	maxFormField   = 100
	maxCodeLength  = 500
	stateByteCount = 16
)

var oauthCodePattern = regexp.MustCompile(`^[A-Za-z0-9/_-]+$`)

var authFormTemplate = template.Must(template.New("auth").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>cashkeeper: link mailbox</title></head>
<body>
<h1>Link mailbox</h1>
{{if .Error}}<p role="alert">{{.Error}}</p>{{end}}
<form method="post" action="/auth">
<label>Username <input name="username" maxlength="50" autocomplete="username" required></label>
<label>Password <input name="password" type="password" maxlength="100" autocomplete="current-password" required></label>
<button type="submit">Continue with Google</button>
</form>
</body></html>
`))

var authErrors = map[string]string{
	"invalid":     "Invalid username or password.",
	"auth_failed": "Google authorization failed, try again.",
}

// AuthForm renders the operator login form.
func (a *API) AuthForm(w http.ResponseWriter, r *http.Request) {
	data := struct{ Error string }{Error: authErrors[r.URL.Query().Get("error")]}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := authFormTemplate.Execute(w, data); err != nil {
		a.logger.Error(r.Context(), "render auth form", "error", err)
	}
}

// AuthSubmit checks the operator's credentials and redirects to the mail
// provider's consent page.
func (a *API) AuthSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/auth?error=invalid", http.StatusSeeOther)
		return
	}

	username := truncate(strings.TrimSpace(r.PostForm.Get("username")), maxFormField)
	password := truncate(r.PostForm.Get("password"), maxFormField)
	if username == "" || strings.TrimSpace(password) == "" {
		a.logger.Warn(r.Context(), "operator login without username or password")
		http.Redirect(w, r, "/auth?error=invalid", http.StatusSeeOther)
		return
	}

	if !a.deps.Operators.Validate(r.Context(), username, password) {
		a.logger.Warn(r.Context(), "operator login failed", "user", logging.SafeValue(username))
		http.Redirect(w, r, "/auth?error=invalid", http.StatusSeeOther)
		return
	}

	state, err := common.MakeRandHexString(stateByteCount)
	if err != nil {
		writeError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/oauth2callback",
		MaxAge:   stateCookieAge,
		HttpOnly: true,
		Secure:   a.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	a.logger.Info(r.Context(), "redirecting operator to mail consent", "user", logging.SafeValue(username))
	http.Redirect(w, r, a.deps.Mail.AuthCodeURL(state), http.StatusFound)
}

// OAuthCallback completes the consent flow and vaults the credential.
func (a *API) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	code := strings.TrimSpace(q.Get("code"))
	if code == "" {
		http.Error(w, "Missing code", http.StatusBadRequest)
		return
	}
	if len(code) > maxCodeLength || !oauthCodePattern.MatchString(code) {
		a.logger.Warn(r.Context(), "malformed oauth code")
		http.Error(w, "Invalid code format", http.StatusBadRequest)
		return
	}

	cookie, err := r.Cookie(stateCookieName)
	if err != nil || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(q.Get("state"))) != 1 {
		a.logger.Warn(r.Context(), "oauth state mismatch")
		http.Error(w, "Invalid state", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Path: "/oauth2callback", MaxAge: -1})

	if err := a.deps.Mail.HandleCallback(r.Context(), code); err != nil {
		a.logger.Error(r.Context(), "oauth callback failed", "error", err)
		http.Redirect(w, r, "/auth?error=auth_failed", http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Authentication successful, mail credentials saved.\n"))
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
