package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"gestion/internal/cache"
	"gestion/internal/cli"
	"gestion/internal/export"
	"gestion/internal/gate"
	apphttp "gestion/internal/http"
	applog "gestion/internal/log"
	"gestion/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap()
	logger.Info("Starting gestion", "port", cfg.Port, "backend", cfg.DataBackend)

	res := cli.InitBackend(context.Background(), logger, cfg)

	ctrl := services.NewController(res.Store, res.Notifier)
	if err := ctrl.Reload(context.Background()); err != nil {
		logger.Error("Failed to load records", "error", err)
		os.Exit(1)
	}
	exps, provs := ctrl.Counts()
	logger.Info("Records loaded", "expenses", exps, "provisions", provs)

	g, err := gate.New(cfg.AccessCode)
	if err != nil {
		logger.Error("Invalid access code", "error", err)
		os.Exit(1)
	}

	thumbs := export.NewThumbnails(cfg.ThumbnailCacheSize, cfg.ThumbnailCacheTTL)
	janitor := cache.NewJanitor(thumbs.Cache())
	janitor.Start(10 * time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Controller: ctrl,
		Gate:       g,
		PDF:        export.NewPDF(thumbs),
		XLSX:       export.NewXLSX(),
		Ready:      res.Ready,
		Logger:     logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		janitor.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Listening", applog.FieldOperation, applog.OpStartup, "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
