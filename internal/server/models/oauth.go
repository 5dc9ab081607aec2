// Package models defines server-side data models.
package models

// OAuthCredential is the third-party mail provider credential kept in the
// vault, one per user id. The user id is not a field: it is the vault key
// the credential is stored under (Vault.Save/Load and the user_id column).
// Its JSON form is the plaintext that gets encrypted at rest.
type OAuthCredential struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
	// ExpiresAtMillis is the access token expiry in Unix milliseconds;
	// zero means unknown.
	ExpiresAtMillis int64 `json:"expirationTimeMillis,omitempty"`
}

// Expired reports whether the access token is past its expiry at nowMillis.
// A credential without a known expiry is treated as expired.
func (c OAuthCredential) Expired(nowMillis int64) bool {
	return c.ExpiresAtMillis <= nowMillis
}
