// Package cryptox implements passphrase-based authenticated encryption used
// by the in-memory token store: a per-record argon2id key derivation followed
// by AES-256-GCM.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"

	"github.com/dmitrijs2005/cashkeeper/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	SaltSize = 16
	KeySize  = 32
)

// ErrCiphertext is returned by Open when the blob is truncated or fails
// authentication (wrong passphrase or tampered data).
var ErrCiphertext = errors.New("cryptox: ciphertext rejected")

// argon2id parameters: 2 passes over 19 MiB, single lane.
const (
	argonTime    = 2
	argonMemory  = 19 * 1024
	argonThreads = 1
)

// DeriveKey stretches passphrase into a 32-byte AES key with argon2id.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, KeySize)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext under passphrase. The result is laid out as
// salt || nonce || ciphertext and is self-contained.
func Seal(plaintext, passphrase []byte) ([]byte, error) {
	salt := common.GenerateRandByteArray(SaltSize)

	key := DeriveKey(passphrase, salt)
	defer common.WipeByteArray(key)

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := common.GenerateRandByteArray(aesgcm.NonceSize())

	out := make([]byte, 0, len(salt)+len(nonce)+len(plaintext)+aesgcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return aesgcm.Seal(out, nonce, plaintext, nil), nil
}

// Open reverses Seal.
func Open(blob, passphrase []byte) ([]byte, error) {
	if len(blob) < SaltSize {
		return nil, ErrCiphertext
	}
	salt := blob[:SaltSize]

	key := DeriveKey(passphrase, salt)
	defer common.WipeByteArray(key)

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	rest := blob[SaltSize:]
	if len(rest) < aesgcm.NonceSize()+aesgcm.Overhead() {
		return nil, ErrCiphertext
	}
	nonce, ct := rest[:aesgcm.NonceSize()], rest[aesgcm.NonceSize():]

	plaintext, err := aesgcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, ErrCiphertext
	}
	return plaintext, nil
}
