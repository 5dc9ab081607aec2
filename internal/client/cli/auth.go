package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cashkeeper/internal/client/client"
	"github.com/dmitrijs2005/cashkeeper/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts for credentials and authenticates against the API. Tokens are
// held in memory by the API client only. The password is wiped before
// returning.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.api.Login(ctx, userName, string(password)); err != nil {
		if errors.Is(err, client.ErrInvalidCredentials) {
			fmt.Fprintln(a.out, "Invalid username or password")
		}
		return err
	}

	a.userName = userName
	fmt.Fprintln(a.out, "Login successful")
	return nil
}

// Refresh asks the server for a new access token using the held refresh token.
func (a *App) Refresh(ctx context.Context) error {
	if err := a.api.Refresh(ctx); err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			a.userName = ""
			fmt.Fprintln(a.out, "Session expired, please login again")
		}
		return err
	}
	fmt.Fprintln(a.out, "Token refreshed")
	return nil
}

// Status prints the session the server associates with the access token.
func (a *App) Status(ctx context.Context) error {
	st, err := a.api.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s as %s, token expires at %s\n", st.Status, st.User, st.TokenExpiresAt.Local().Format(time.DateTime))
	return nil
}

// Logout forgets the held tokens. The server keeps no session to close.
func (a *App) Logout(ctx context.Context) error {
	a.api.Logout()
	a.userName = ""
	fmt.Fprintln(a.out, "Logged out")
	return nil
}
