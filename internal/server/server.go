// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package server wires configuration, storage, cache, mail and the
// HTTP layer together.
package server

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/labstack/echo/v4"
	"github.com/mwiecke/storefront/internal/cache"
	"github.com/mwiecke/storefront/internal/config"
	"github.com/mwiecke/storefront/internal/database"
	"github.com/mwiecke/storefront/internal/handlers"
	"github.com/mwiecke/storefront/internal/middleware"
	"github.com/mwiecke/storefront/internal/permissions"
	"github.com/mwiecke/storefront/internal/repository"
	"github.com/mwiecke/storefront/internal/services/email"
	"github.com/mwiecke/storefront/internal/token"
	"github.com/urfave/cli/v3"
)

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"environment", cfg.Server.Environment,
	)

	// Database
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	// Redis
	rdb := cache.NewClient(cfg.Redis)
	defer func() {
		if closeErr := rdb.Close(); closeErr != nil {
			slog.Error("failed to close redis client", "error", closeErr)
		}
	}()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach redis: %w", err)
	}
	cch := cache.New(rdb)

	// Repository and services
	repo := repository.New(db)
	tokens, err := token.NewService(cfg.Auth, repo)
	if err != nil {
		return err
	}
	mailer, err := email.NewService(&cfg.SMTP, cfg.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("failed to configure mail: %w", err)
	}
	stateCodec, err := newStateCodec(cfg.Auth.OAuthStateKey)
	if err != nil {
		return err
	}

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpErrorHandler(cfg.IsProduction())

	setupMiddleware(e, cfg)

	deps := &routerDeps{
		handlers: handlers.New(repo, cch, nil),
		auth:     handlers.NewAuth(repo, cch, tokens, mailer, nil, stateCodec, cfg.IsProduction()),
		session:  middleware.Session(tokens, repo, cch),
		matrix:   permissions.Default(),
	}
	setupRoutes(e, deps)

	return startWithGracefulShutdown(e, cfg)
}

// newStateCodec builds the signer for the federated-login state cookie.
// Without a configured key a random one is used; state cookies then
// survive only the current process, which is fine for a single node.
func newStateCodec(hexKey string) (*securecookie.SecureCookie, error) {
	var key []byte
	if hexKey == "" {
		key = securecookie.GenerateRandomKey(32)
	} else {
		var err error
		key, err = hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("invalid oauth state key: %w", err)
		}
	}
	return securecookie.New(key, nil), nil
}

func startWithGracefulShutdown(e *echo.Echo, cfg *config.Config) error {
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
