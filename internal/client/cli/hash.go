package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/dmitrijs2005/cashkeeper/internal/common"
	"github.com/dmitrijs2005/cashkeeper/internal/server/credentials"
)

var errPasswordMismatch = errors.New("passwords do not match")

// hashPassword is a test seam for the registry hash function.
var hashPassword = credentials.HashPassword

// Hash reads a password twice without echo and prints the bcrypt hash to put
// into the server's credential registry. Nothing is sent to the server.
func (a *App) Hash(ctx context.Context) error {
	first, err := getPassword(a.out, "New password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(first)

	second, err := getPassword(a.out, "Repeat password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(second)

	if !bytes.Equal(first, second) {
		return errPasswordMismatch
	}
	if n := utf8.RuneCount(first); n == 0 || n > credentials.MaxPasswordLength {
		return fmt.Errorf("password must be 1 to %d characters", credentials.MaxPasswordLength)
	}

	hash, err := hashPassword(string(first))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, hash)
	return nil
}
