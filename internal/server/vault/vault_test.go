package vault

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/cashkeeper/internal/common"
	"github.com/dmitrijs2005/cashkeeper/internal/logging"
	"github.com/dmitrijs2005/cashkeeper/internal/server/models"
	"github.com/dmitrijs2005/cashkeeper/internal/server/repositories/oauthtokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	masterKey = []byte("0123456789abcdef0123456789abcdef")
	otherKey  = []byte("fedcba9876543210fedcba9876543210")
)

func newVault(t *testing.T, repo oauthtokens.Repository, key []byte) *Vault {
	t.Helper()
	v, err := New(repo, key, &logging.Nop{})
	require.NoError(t, err)
	return v
}

func TestNew_WeakKey(t *testing.T) {
	_, err := New(oauthtokens.NewInMemoryRepository(), []byte("short"), &logging.Nop{})
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	v := newVault(t, oauthtokens.NewInMemoryRepository(), masterKey)

	cred := models.OAuthCredential{AccessToken: "ya29.a0", RefreshToken: "1//0g", ExpiresAtMillis: 1700000000000}
	require.NoError(t, v.Save(ctx, "gmail_user", cred))

	got, ok := v.Load(ctx, "gmail_user")
	require.True(t, ok)
	assert.Equal(t, cred, got)

	_, ok = v.Load(ctx, "unknown")
	assert.False(t, ok)
}

func TestSave_ReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	v := newVault(t, oauthtokens.NewInMemoryRepository(), masterKey)

	require.NoError(t, v.Save(ctx, "gmail_user", models.OAuthCredential{AccessToken: "old"}))
	require.NoError(t, v.Save(ctx, "gmail_user", models.OAuthCredential{AccessToken: "new"}))

	got, ok := v.Load(ctx, "gmail_user")
	require.True(t, ok)
	assert.Equal(t, "new", got.AccessToken)
}

func TestSave_KeyedByUserID(t *testing.T) {
	ctx := context.Background()
	v := newVault(t, oauthtokens.NewInMemoryRepository(), masterKey)

	require.NoError(t, v.Save(ctx, "alice", models.OAuthCredential{AccessToken: "a"}))
	require.NoError(t, v.Save(ctx, "bob", models.OAuthCredential{AccessToken: "b"}))

	got, ok := v.Load(ctx, "alice")
	require.True(t, ok)
	assert.Equal(t, "a", got.AccessToken)

	got, ok = v.Load(ctx, "bob")
	require.True(t, ok)
	assert.Equal(t, "b", got.AccessToken)
}

func TestSave_EmptyUser(t *testing.T) {
	v := newVault(t, oauthtokens.NewInMemoryRepository(), masterKey)
	err := v.Save(context.Background(), " ", models.OAuthCredential{AccessToken: "a"})
	assert.ErrorIs(t, err, common.ErrInvalidRequest)
}

func TestLoad_WrongKeyFailsClosed(t *testing.T) {
	ctx := context.Background()
	repo := oauthtokens.NewInMemoryRepository()

	require.NoError(t, newVault(t, repo, masterKey).Save(ctx, "gmail_user", models.OAuthCredential{AccessToken: "a"}))

	_, ok := newVault(t, repo, otherKey).Load(ctx, "gmail_user")
	assert.False(t, ok)
}

type stubRepo struct {
	findData []byte
	findErr  error
	upErr    error
	reErr    error
	reN      int64
	gotKey   []byte
}

func (s *stubRepo) Upsert(ctx context.Context, userID string, plaintext, key []byte) error {
	return s.upErr
}

func (s *stubRepo) Find(ctx context.Context, userID string, key []byte) ([]byte, error) {
	s.gotKey = key
	return s.findData, s.findErr
}

func (s *stubRepo) Reencrypt(ctx context.Context, oldKey, newKey []byte) (int64, error) {
	return s.reN, s.reErr
}

func TestLoad_CorruptPlaintextIsAbsent(t *testing.T) {
	for _, data := range []string{"not json", `{"refreshToken":"r"}`} {
		v := newVault(t, &stubRepo{findData: []byte(data)}, masterKey)
		_, ok := v.Load(context.Background(), "gmail_user")
		assert.False(t, ok, data)
	}
}

func TestLoad_StorageErrorIsAbsent(t *testing.T) {
	v := newVault(t, &stubRepo{findErr: errors.New("conn reset")}, masterKey)
	_, ok := v.Load(context.Background(), "gmail_user")
	assert.False(t, ok)
}

func TestSave_StorageError(t *testing.T) {
	v := newVault(t, &stubRepo{upErr: errors.New("conn reset")}, masterKey)
	err := v.Save(context.Background(), "gmail_user", models.OAuthCredential{AccessToken: "a"})
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestRotate(t *testing.T) {
	ctx := context.Background()
	repo := oauthtokens.NewInMemoryRepository()
	v := newVault(t, repo, masterKey)

	require.NoError(t, v.Save(ctx, "gmail_user", models.OAuthCredential{AccessToken: "a"}))

	n, err := v.Rotate(ctx, otherKey)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, ok := v.Load(ctx, "gmail_user")
	require.True(t, ok)
	assert.Equal(t, "a", got.AccessToken)

	_, ok = newVault(t, repo, masterKey).Load(ctx, "gmail_user")
	assert.False(t, ok, "old key must no longer open the record")
}

func TestRotate_FailureKeepsOldKey(t *testing.T) {
	ctx := context.Background()
	repo := &stubRepo{reErr: errors.New("tx aborted"), findData: []byte(`{"token":"a"}`)}
	v := newVault(t, repo, masterKey)

	_, err := v.Rotate(ctx, otherKey)
	require.Error(t, err)

	_, ok := v.Load(ctx, "gmail_user")
	require.True(t, ok)
	assert.Equal(t, masterKey, repo.gotKey)
}

func TestRotate_WeakKey(t *testing.T) {
	v := newVault(t, oauthtokens.NewInMemoryRepository(), masterKey)
	_, err := v.Rotate(context.Background(), []byte("short"))
	assert.ErrorIs(t, err, common.ErrConfiguration)
}
