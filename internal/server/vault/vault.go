// Package vault keeps third-party OAuth credentials encrypted at rest under a
// process-wide master key.
package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/cashkeeper/internal/common"
	"github.com/dmitrijs2005/cashkeeper/internal/logging"
	"github.com/dmitrijs2005/cashkeeper/internal/server/models"
	"github.com/dmitrijs2005/cashkeeper/internal/server/repositories/oauthtokens"
)

// MinKeyLength is the minimum master key size in bytes.
const MinKeyLength = 32

// Vault stores at most one OAuthCredential per user id. Upserts are atomic in
// the backing repository; Rotate excludes concurrent Save and Load.
type Vault struct {
	repo   oauthtokens.Repository
	logger logging.Logger

	mu  sync.RWMutex
	key []byte
}

// New returns a Vault encrypting with masterKey. A key shorter than
// MinKeyLength is a configuration error.
func New(repo oauthtokens.Repository, masterKey []byte, logger logging.Logger) (*Vault, error) {
	if len(masterKey) < MinKeyLength {
		return nil, fmt.Errorf("%w: master key must be at least %d bytes", common.ErrConfiguration, MinKeyLength)
	}
	return &Vault{
		repo:   repo,
		key:    append([]byte(nil), masterKey...),
		logger: logger.With("module", "vault"),
	}, nil
}

// Save inserts or replaces the credential of userID.
func (v *Vault) Save(ctx context.Context, userID string, cred models.OAuthCredential) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: empty user id", common.ErrInvalidRequest)
	}

	plaintext, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(plaintext)

	v.mu.RLock()
	defer v.mu.RUnlock()

	if err := v.repo.Upsert(ctx, userID, plaintext, v.key); err != nil {
		v.logger.Error(ctx, "saving credential failed", "user", logging.SafeValue(userID), "error", err)
		return fmt.Errorf("%w: save credential: %v", common.ErrorInternal, err)
	}

	v.logger.Info(ctx, "credential saved", "user", logging.SafeValue(userID))
	return nil
}

// Load returns the credential of userID. Storage and decryption failures are
// logged and reported as absent.
func (v *Vault) Load(ctx context.Context, userID string) (models.OAuthCredential, bool) {
	var cred models.OAuthCredential

	v.mu.RLock()
	plaintext, err := v.repo.Find(ctx, userID, v.key)
	v.mu.RUnlock()

	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			v.logger.Error(ctx, "loading credential failed", "user", logging.SafeValue(userID), "error", err)
		}
		return cred, false
	}
	defer common.WipeByteArray(plaintext)

	if err := json.Unmarshal(plaintext, &cred); err != nil {
		v.logger.Error(ctx, "stored credential is corrupt", "user", logging.SafeValue(userID), "error", err)
		return models.OAuthCredential{}, false
	}
	if cred.AccessToken == "" {
		v.logger.Error(ctx, "stored credential has no access token", "user", logging.SafeValue(userID))
		return models.OAuthCredential{}, false
	}

	return cred, true
}

// Rotate re-encrypts every stored credential under newKey and switches the
// vault to it. On failure the old key stays in effect.
func (v *Vault) Rotate(ctx context.Context, newKey []byte) (int64, error) {
	if len(newKey) < MinKeyLength {
		return 0, fmt.Errorf("%w: master key must be at least %d bytes", common.ErrConfiguration, MinKeyLength)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	n, err := v.repo.Reencrypt(ctx, v.key, newKey)
	if err != nil {
		v.logger.Error(ctx, "master key rotation failed", "error", err)
		return 0, err
	}

	common.WipeByteArray(v.key)
	v.key = append([]byte(nil), newKey...)

	v.logger.Info(ctx, "master key rotated", "records", n)
	return n, nil
}
