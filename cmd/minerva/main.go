package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bartosz121/minerva/internal/app"
	"github.com/bartosz121/minerva/internal/auth"
	"github.com/bartosz121/minerva/internal/observability"
	"github.com/bartosz121/minerva/internal/platform/db"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	bdb, err := db.Open(ctx, cfg.PGDSN, cfg.DBDebug)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := bdb.Close(); err != nil {
			logger.Warn("close database", slog.Any("error", err))
		}
	}()

	if err := db.Migrate(ctx, bdb); err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	authHandler := auth.NewHandler(auth.HandlerConfig{
		Logger:     logger,
		CookieName: cfg.AccessTokenCookieName,
		TokenTTL:   cfg.AccessTokenDuration,
		Production: cfg.IsProduction(),
	})

	router := app.NewRouter(app.RouterParams{
		Logger:      logger,
		Config:      cfg,
		DB:          bdb,
		AuthHandler: authHandler,
		Metrics:     metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
