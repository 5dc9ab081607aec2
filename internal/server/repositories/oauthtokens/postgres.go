package oauthtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/cashkeeper/internal/common"
	"github.com/dmitrijs2005/cashkeeper/internal/dbx"
)

// PostgresRepository keeps records in the oauth_tokens table and delegates
// encryption to pgcrypto (pgp_sym_encrypt / pgp_sym_decrypt). It works over
// dbx.DBTX (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, userID string, plaintext, key []byte) error {
	query := `
		INSERT INTO oauth_tokens (user_id, token_data, updated_at)
		VALUES ($1, pgp_sym_encrypt($2, $3), now())
		ON CONFLICT (user_id) DO UPDATE
		SET token_data = EXCLUDED.token_data, updated_at = now()
	`
	if _, err := r.db.ExecContext(ctx, query, userID, string(plaintext), string(key)); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Find(ctx context.Context, userID string, key []byte) ([]byte, error) {
	query := `
		SELECT pgp_sym_decrypt(token_data, $2)::text
		FROM oauth_tokens
		WHERE user_id = $1
	`
	var data string
	if err := r.db.QueryRowContext(ctx, query, userID, string(key)).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return []byte(data), nil
}

// Reencrypt runs in a transaction of its own when the repository is bound to
// a *sql.DB, and in the caller's transaction otherwise.
func (r *PostgresRepository) Reencrypt(ctx context.Context, oldKey, newKey []byte) (int64, error) {
	db, ok := r.db.(*sql.DB)
	if !ok {
		return reencrypt(ctx, r.db, oldKey, newKey)
	}

	var n int64
	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		n, err = reencrypt(ctx, tx, oldKey, newKey)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func reencrypt(ctx context.Context, db dbx.DBTX, oldKey, newKey []byte) (int64, error) {
	update := `
		UPDATE oauth_tokens
		SET token_data = pgp_sym_encrypt(pgp_sym_decrypt(token_data, $1), $2), updated_at = now()
	`
	res, err := db.ExecContext(ctx, update, string(oldKey), string(newKey))
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	// every row must now open under the new key
	verify := `
		SELECT count(pgp_sym_decrypt(token_data, $1))
		FROM oauth_tokens
	`
	var readable int64
	if err := db.QueryRowContext(ctx, verify, string(newKey)).Scan(&readable); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	if readable != n {
		return 0, fmt.Errorf("%w: rotated %d records, %d readable", common.ErrorInternal, n, readable)
	}
	return n, nil
}
