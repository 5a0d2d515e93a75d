// Package server initializes and runs the vault server: it resolves
// configuration, opens the database, runs migrations, constructs the cipher
// and services, and serves the HTTP API until shutdown.
package server

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dbateam/secretvault/internal/cipherx"
	"github.com/dbateam/secretvault/internal/logging"
	"github.com/dbateam/secretvault/internal/server/config"
	"github.com/dbateam/secretvault/internal/server/httpapi"
	"github.com/dbateam/secretvault/internal/server/repositories/repomanager"
	"github.com/dbateam/secretvault/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *httpapi.Server
}

// newCipher resolves the cipher from configuration: a raw hex key when
// provided, otherwise a passphrase-derived key.
func newCipher(c *config.Config) (*cipherx.Cipher, error) {
	if c.CipherKeyHex != "" {
		key, err := hex.DecodeString(c.CipherKeyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid cipher key: %w", err)
		}
		return cipherx.New(key)
	}
	if c.CipherPassphrase != "" {
		return cipherx.NewFromPassphrase([]byte(c.CipherPassphrase), []byte(c.CipherSalt))
	}
	return nil, fmt.Errorf("no cipher key configured")
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	cipher, err := newCipher(c)
	if err != nil {
		return nil, err
	}

	ss := services.NewSecretService(db, rm, cipher, logger)
	ps := services.NewPermissionService(db, rm, logger)
	ts := services.NewTagService(db, rm, logger)

	srv := httpapi.NewServer(c.EndpointAddrHTTP, logger, ss, ps, ts, rm.Users(db), c.JWTSecret)

	return &App{config: c, logger: logger, db: db, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}
