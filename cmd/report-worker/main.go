package main

import (
	"context"
	"errors"
	"os"
	"time"

	"gestion/internal/amqp"
	"gestion/internal/backend"
	"gestion/internal/cli"
	"gestion/internal/export"
	applog "gestion/internal/log"
	"gestion/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap()
	logger = logger.WithComponent(applog.ComponentWorker)
	logger.Info("Starting report-worker", "export_dir", cfg.ExportDir)

	// The worker reads what the server wrote, so only a shared store works.
	if cfg.DataBackend != backend.SQLiteBackend.String() {
		logger.Error("report-worker requires the sqlite backend", "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if !cfg.AMQPEnabled() {
		logger.Error("report-worker requires AMQP_URL")
		os.Exit(1)
	}

	res := cli.InitBackend(context.Background(), logger, cfg)

	thumbs := export.NewThumbnails(cfg.ThumbnailCacheSize, cfg.ThumbnailCacheTTL)
	w := worker.NewReportWorker(res.Store, cfg.ExportDir, export.NewPDF(thumbs), export.NewXLSX())

	ctx, done := cli.GracefulShutdown(logger, 15*time.Second, func(context.Context) {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	if err := w.StartupRegenerate(ctx); err != nil {
		// Keep consuming; the next change event rebuilds the month.
		logger.Error("Startup regeneration failed", "error", err)
	}

	err := amqp.ConsumeWithReconnect(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, w.HandleRecordChanged)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("report-worker stopped")
}
