// Package oauthtokens stores per-user OAuth credentials encrypted at rest.
//
// Repositories deal in opaque plaintext bytes; the encryption key is passed
// per call and never stored next to the ciphertext.
package oauthtokens

import "context"

type Repository interface {
	// Upsert inserts or atomically replaces the record of userID.
	Upsert(ctx context.Context, userID string, plaintext, key []byte) error
	// Find returns the decrypted record or common.ErrorNotFound.
	Find(ctx context.Context, userID string, key []byte) ([]byte, error)
	// Reencrypt moves every record from oldKey to newKey and returns the
	// number of records rotated. Either all records move or none do.
	Reencrypt(ctx context.Context, oldKey, newKey []byte) (int64, error)
}
