package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"assetstore/internal/cleanup"
	"assetstore/internal/logging"
	"assetstore/internal/models"
	"assetstore/internal/objectstore"
	"assetstore/internal/storage"
)

// app holds the collaborators shared by every subcommand.
type app struct {
	cfg     *models.Config
	db      *storage.Storage
	objects objectstore.Store
	logs    io.Closer
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := models.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logs, err := logging.Setup(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	db, err := storage.NewStorage(ctx, cfg.DatabaseURL)
	if err != nil {
		logs.Close()
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}

	objects, err := objectstore.New(ctx, cfg)
	if err != nil {
		db.Close()
		logs.Close()
		return nil, fmt.Errorf("failed to init object storage: %w", err)
	}

	return &app{cfg: cfg, db: db, objects: objects, logs: logs}, nil
}

func (a *app) Close() {
	a.db.Close()
	if err := a.logs.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
	}
}

func (a *app) newWorker() *cleanup.Worker {
	return cleanup.NewWorker(a.db, a.objects,
		cleanup.WithConcurrency(a.cfg.Cleanup.Concurrency),
		cleanup.WithDeleteTimeout(a.cfg.Cleanup.DeleteTimeout),
	)
}

func (a *app) cleanupOptions() models.CleanupOptions {
	return models.CleanupOptions{
		BatchSize:   a.cfg.Cleanup.BatchSize,
		MaxAttempts: a.cfg.Cleanup.MaxAttempts,
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
