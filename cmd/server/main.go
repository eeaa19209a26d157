// Command server runs the user synchronization backend: a webhook sink that
// mirrors identity-provider users into a local store, plus an authenticated
// profile API over that store.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-user-sync-backend/internal/auth"
	"github.com/tbourn/go-user-sync-backend/internal/config"
	httpapi "github.com/tbourn/go-user-sync-backend/internal/http"
	"github.com/tbourn/go-user-sync-backend/internal/observability"
	"github.com/tbourn/go-user-sync-backend/internal/repo"
	"github.com/tbourn/go-user-sync-backend/internal/server"
	"github.com/tbourn/go-user-sync-backend/internal/sysutil"
	"github.com/tbourn/go-user-sync-backend/internal/webhook"
)

// @title           User Sync Backend API
// @version         1.0
// @description     Webhook-driven user synchronization and profile API.
//
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
// @description     Bearer token issued by the identity provider.
func main() {
	// Optional .env for local development; real deployments use the environment.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	version := sysutil.FirstNonEmpty(os.Getenv("SERVICE_VERSION"), "dev")
	log.Info().
		Str("version", version).
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("starting user sync backend")

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}

	shutdownTracing, err := observability.SetupOTel(context.Background(), cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("configure tracing")
	}

	// Both credentials are optional at startup; the affected endpoints fail
	// closed until they are configured.
	var verifier *webhook.Verifier
	if cfg.Clerk.WebhookSecret != "" {
		verifier, err = webhook.NewVerifier(cfg.Clerk.WebhookSecret)
		if err != nil {
			log.Fatal().Err(err).Msg("parse webhook signing secret")
		}
	} else {
		log.Warn().Msg("CLERK_WEBHOOK_SECRET not set, webhook endpoint will reject deliveries")
	}

	var tokens auth.TokenVerifier
	if cfg.Clerk.JWTPublicKey != "" {
		jv, err := auth.NewJWTVerifier(cfg.Clerk.JWTPublicKey)
		if err != nil {
			log.Fatal().Err(err).Msg("parse JWT verification key")
		}
		tokens = jv
	} else {
		log.Warn().Msg("CLERK_JWT_PUBLIC_KEY not set, profile endpoints will reject requests")
	}

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, tokens, verifier, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	coord := server.NewCoordinator(srv, cfg.ShutdownTimeout, log.Logger)
	coord.OnShutdown("tracing", shutdownTracing)
	coord.OnShutdown("database", func(context.Context) error { return repo.Close(db) })

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		os.Exit(coord.Trigger(sig.String()))
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("listener failed")
			coord.Trigger("listener failure")
			os.Exit(server.ExitError)
		}
		os.Exit(coord.Trigger("listener closed"))
	}
}
