package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"assettrack/api/internal/app"
	"assettrack/api/internal/authpw"
	"assettrack/api/internal/config"
	"assettrack/api/internal/email"
	"assettrack/api/internal/feed"
	"assettrack/api/internal/migration"
	"assettrack/api/internal/roles"
	"assettrack/api/internal/session"
	"assettrack/api/internal/store"

	"github.com/rs/zerolog"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "assettrack-api").Logger()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("failed to create state dir")
	}

	dataStore := store.NewPostgresStore(db)
	roleResolver := roles.NewResolver(dataStore, log)
	authService := authpw.NewService(dataStore)
	mailService := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})

	hub := feed.NewHub()
	defer hub.Close()

	service := app.NewWithPostgres(cfg, dataStore, roleResolver, authService, mailService, hub, log)
	service.UseLegacyMigrator(migration.NewRunner(cfg.StateDir, dataStore, log))
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Info().Msg("using Redis for refresh token storage")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		service.UseSessionStore(redisStore)
	} else {
		log.Info().Msg("using PostgreSQL for refresh token storage")
	}

	feedWS := app.FeedHandler(hub, log)
	httpServer := app.NewHTTPServer(service, feedWS, cfg.CORSOrigin, log)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("AssetTrack API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
