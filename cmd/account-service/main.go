package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/account-service/internal/account"
	"github.com/vasiliy-maslov/account-service/internal/config"
	"github.com/vasiliy-maslov/account-service/internal/db"
	accountHttp "github.com/vasiliy-maslov/account-service/internal/handler/http"
	"github.com/vasiliy-maslov/account-service/internal/metrics"
)

func main() {
	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = ".env"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setupLogger(cfg.App)

	log.Info().
		Str("store_driver", cfg.App.StoreDriver).
		Str("password_hasher", cfg.App.PasswordHasher).
		Msg("Account service starting...")

	var (
		store account.Store
		pg    *db.Postgres
	)
	switch cfg.App.StoreDriver {
	case config.StoreDriverMemory:
		log.Warn().Msg("Using in-memory store, accounts will not survive a restart")
		store = account.NewMemoryStore()
	default:
		pg, err = db.New(context.Background(), cfg.Postgres)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		if cfg.Postgres.AutoMigrate {
			if err := pg.Migrate(); err != nil {
				log.Fatal().Err(err).Msg("Failed to apply migrations")
			}
		}
		store = account.NewPostgresStore(pg.DB)
	}

	m := metrics.New()
	accountSvc := account.NewService(store, account.NewPasswordHasher(cfg.App.PasswordHasher))

	router := accountHttp.NewRouter(
		accountHttp.NewHealthHandler(store, cfg.App.HealthProbeTimeout, m),
		accountHttp.NewAccountHandler(accountSvc),
		m.Instrument,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	var metricsSrv *http.Server
	if cfg.App.MetricsPort != "" {
		metricsSrv = &http.Server{
			Addr:              ":" + cfg.App.MetricsPort,
			Handler:           m.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info().Str("port", cfg.App.MetricsPort).Msg("Starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Metrics server shutdown failed")
		}
	}
	if pg != nil {
		pg.Close()
	}

	log.Info().Msg("Account service stopped gracefully")
}

func setupLogger(cfg config.AppConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", "account-service").Logger()
}
