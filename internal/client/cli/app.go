package cli

import (
	"bufio"
	"context"
	"io"
	"log"
	"os"

	"github.com/dmitrijs2005/cashkeeper/internal/client/client"
	"github.com/dmitrijs2005/cashkeeper/internal/client/config"
)

// apiClient is the subset of client.HTTPClient the CLI drives.
type apiClient interface {
	Login(ctx context.Context, username, password string) error
	Refresh(ctx context.Context) error
	Status(ctx context.Context) (*client.Status, error)
	Cash(ctx context.Context) ([]client.CashValue, error)
	Ping(ctx context.Context) error
	LoggedIn() bool
	Logout()
}

type App struct {
	config   *config.Config
	api      apiClient
	userName string
	reader   *bufio.Reader
	out      io.Writer
}

func NewApp(c *config.Config) (*App, error) {
	hc, err := client.NewHTTPClient(c.ServerURL, c.RequestTimeout)
	if err != nil {
		return nil, err
	}

	return &App{config: c, api: hc, reader: bufio.NewReader(os.Stdin), out: os.Stdout}, nil
}

// Run greets the user, checks the server once and blocks in the REPL until
// the user exits or stdin is closed.
func (a *App) Run(ctx context.Context) {
	log.Println("Welcome to cashkeeper CLI (type 'help' for commands)")

	if err := a.api.Ping(ctx); err != nil {
		log.Printf("Server %s is not ready: %v", a.config.ServerURL, err)
	}

	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) isLoggedIn() bool {
	return a.api.LoggedIn()
}

func (a *App) getStatus() string {
	if !a.isLoggedIn() {
		return "not logged in"
	}
	return a.userName
}
