// Package server wires the cashkeeper server together: it loads secrets,
// opens storage, builds the services and runs the HTTP API and the gRPC
// health endpoint until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/cashkeeper/internal/common"
	"github.com/dmitrijs2005/cashkeeper/internal/logging"
	"github.com/dmitrijs2005/cashkeeper/internal/server/auth"
	"github.com/dmitrijs2005/cashkeeper/internal/server/config"
	"github.com/dmitrijs2005/cashkeeper/internal/server/credentials"
	"github.com/dmitrijs2005/cashkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/cashkeeper/internal/server/mail"
	"github.com/dmitrijs2005/cashkeeper/internal/server/reconcile"
	"github.com/dmitrijs2005/cashkeeper/internal/server/repositories/oauthtokens"
	"github.com/dmitrijs2005/cashkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cashkeeper/internal/server/services"
	"github.com/dmitrijs2005/cashkeeper/internal/server/vault"

	gs "github.com/dmitrijs2005/cashkeeper/internal/server/grpc"
)

const shutdownTimeout = 10 * time.Second

// test seams
var (
	logOutput    io.Writer = os.Stdout
	openPostgres           = repomanager.OpenPostgres
	newRepoMgr             = repomanager.NewPostgresRepositoryManager
)

var newRegistryS3 = func(ctx context.Context, st credentials.S3Settings) (credentials.S3API, error) {
	return credentials.NewS3Client(ctx, st)
}

type App struct {
	config *config.Config
	logger logging.Logger

	db    *sql.DB
	vault *vault.Vault
	api   *httpapi.API
	grpc  *gs.GRPCServer
}

// NewApp loads every secret and dependency up front. Any missing or weak
// secret, an empty registry or an unreachable database aborts startup with
// an error wrapping common.ErrConfiguration or the underlying cause.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(logOutput, c.LogLevel)

	if err := c.Validate(); err != nil {
		return nil, err
	}

	jwtSecret, err := config.ReadSecret(c.JWTSecretFile, config.MinSecretLength)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(jwtSecret)

	masterKey, err := config.ReadSecret(c.MasterKeyFile, config.MinSecretLength)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(masterKey)

	store, err := newCredentialStore(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenService(jwtSecret)
	if err != nil {
		return nil, err
	}

	app := &App{config: c, logger: logger}

	repo, err := app.openVaultStorage(ctx)
	if err != nil {
		return nil, err
	}

	app.vault, err = vault.New(repo, masterKey, logger)
	if err != nil {
		app.close()
		return nil, err
	}

	oauthCfg, err := mail.LoadOAuthConfig(c.GoogleClientSecretFile, c.OAuthRedirectURI)
	if err != nil {
		app.close()
		return nil, err
	}
	gmail := mail.NewGmail(oauthCfg, app.vault, c.MailUserID, c.MailQuery, logger)

	engine, err := reconcile.NewEngine(reconcile.DefaultRules(), c.Currencies)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}

	authService := services.NewAuthService(store, tokens, c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration, logger)
	cashService := services.NewCashService(gmail, engine, int64(c.MailMaxMessages), c.RequestTimeout, logger)

	proxies, err := c.TrustedProxyPrefixes()
	if err != nil {
		app.close()
		return nil, err
	}

	app.api = httpapi.New(httpapi.Deps{
		Auth:      authService,
		Cash:      cashService,
		Mail:      gmail,
		Operators: store,
		Ready:     httpapi.ReadyProbe{DB: app.db},
	}, httpapi.Options{
		AuthRatePerMinute: c.AuthRateLimitPerMinute,
		AuthBurst:         c.AuthRateLimitBurst,
		SecureCookies:     strings.HasPrefix(c.OAuthRedirectURI, "https://"),
		TrustedProxies:    proxies,
	}, logger)

	app.grpc = gs.NewGRPCServer(c.EndpointAddrGRPC, logger)

	return app, nil
}

func newCredentialStore(ctx context.Context, c *config.Config, logger logging.Logger) (*credentials.Store, error) {
	var source credentials.RegistrySource = credentials.NewFileSource(c.CredentialsFile)
	if c.RegistryS3Bucket != "" {
		client, err := newRegistryS3(ctx, credentials.S3Settings{
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: s3 client: %v", common.ErrConfiguration, err)
		}
		source = credentials.NewS3Source(client, c.RegistryS3Bucket, c.RegistryS3Key)
	}

	store := credentials.NewStore(source, c.MaxAPIUsers, logger)
	n, err := store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: credential registry %s: %v", common.ErrConfiguration, source, err)
	}
	logger.Info(ctx, "credential registry ready", "source", source.String(), "users", n)
	return store, nil
}

// openVaultStorage connects to Postgres and migrates it. Without a DSN the
// vault lives in memory and is lost on restart.
func (app *App) openVaultStorage(ctx context.Context) (oauthtokens.Repository, error) {
	if app.config.DatabaseDSN == "" {
		app.logger.Warn(ctx, "no database configured, mail credentials are kept in memory only")
		return oauthtokens.NewInMemoryRepository(), nil
	}

	db, err := openPostgres(ctx, app.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := newRepoMgr()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	app.db = db
	return rm.OAuthTokens(db), nil
}

// RotateMasterKey re-encrypts the vault under the key stored in path.
func (app *App) RotateMasterKey(ctx context.Context, path string) (int64, error) {
	defer app.close()

	newKey, err := config.ReadSecret(path, config.MinSecretLength)
	if err != nil {
		return 0, err
	}
	defer common.WipeByteArray(newKey)

	return app.vault.Rotate(ctx, newKey)
}

// Handler exposes the HTTP handler, mainly for tests.
func (app *App) Handler() http.Handler {
	return app.api.Handler()
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.grpc.Run(ctx); err != nil {
		app.logger.Error(ctx, "gRPC server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc, lis net.Listener) {
	srv := &http.Server{
		Handler:           app.api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      app.config.RequestTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.grpc.SetServing(false)
		app.logger.Info(context.Background(), "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(shutdownCtx, "HTTP shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", lis.Addr().String())
	app.grpc.SetServing(true)

	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "HTTP server failed", "error", err)
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.close()

	app.logger.Info(ctx, "Starting app...")

	lis, err := net.Listen("tcp", app.config.EndpointAddrHTTP)
	if err != nil {
		return err
	}

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc, lis)
	}()

	wg.Wait()
	app.logger.Info(context.Background(), "Stopped")
	return nil
}

func (app *App) close() {
	if app.db != nil {
		_ = app.db.Close()
		app.db = nil
	}
}
