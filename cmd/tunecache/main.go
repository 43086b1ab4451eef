package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tunecache/internal/catalog"
	"tunecache/internal/config"
	"tunecache/internal/manager"
	"tunecache/internal/reaper"
	"tunecache/internal/scheduler"
	"tunecache/internal/storage"
	"tunecache/internal/store"
	"tunecache/internal/transfer"
	"tunecache/internal/web"
	"tunecache/pkg/models"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	setupLogging(cfg.LogLevel)

	slog.Info("Starting tunecache offline manager", "version", "1.0.0")

	st, err := store.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize metadata store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("Failed to close metadata store", "error", err)
		}
	}()

	if st.Recovered() {
		slog.Warn("Metadata store could not be read and was recovered empty")
	}

	catalogClient := catalog.New(cfg.CatalogAPIURL, cfg.CatalogAPIKey)

	// Validate API key (warn but don't exit if validation fails)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 10*time.Second)
	if err := catalogClient.Ping(pingCtx); err != nil {
		slog.Warn("Catalog API key validation failed - continuing anyway", "error", err)
	} else {
		slog.Info("Catalog API key validated successfully")
	}
	cancelPing()

	sched := scheduler.New(st, transfer.NewHTTPWorker(), cfg.MaxConcurrent)
	accountant := storage.New(st, cfg.DownloadsPath)
	mgr := manager.New(st, sched, accountant, catalogClient, cfg.DownloadsPath, cfg.OfflineExpiry)
	server := web.NewServer(mgr, cfg)

	return runServer(cfg, server, sched, st, mgr)
}

func runServer(cfg *config.Config, server *web.Server, sched *scheduler.Scheduler, st *store.Store, mgr *manager.Manager) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Recover items interrupted by a previous process before dispatching
	if err := resetOrphanedItems(st); err != nil {
		slog.Error("Failed to reset orphaned items", "error", err)
	}
	requeuePendingItems(st, sched)

	sched.Start(ctx)

	if cfg.ExpiryReapInterval > 0 {
		go reaper.New(mgr, cfg.ExpiryReapInterval).Run(ctx)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed to start: %w", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	}

	// Cancel context to stop workers and the reaper
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	slog.Info("Server shutdown complete")
	return nil
}

// setupLogging configures structured logging based on the log level
func setupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	logger := slog.New(handler)
	slog.SetDefault(logger)
}

// resetOrphanedItems finds items left mid-transfer by a previous process and
// resets them to pending so they re-enter the queue.
func resetOrphanedItems(st *store.Store) error {
	orphaned := st.List(store.Filter{Statuses: []models.ContentStatus{models.StatusDownloading}})

	for _, item := range orphaned {
		if item.FilePath != "" {
			partPath := transfer.PartFilePath(item.FilePath)
			if err := os.Remove(partPath); err != nil && !os.IsNotExist(err) {
				slog.Warn("Failed to clean up orphaned partial file",
					"part_path", partPath,
					"id", item.ID,
					"error", err)
			}
		}

		item.Status = models.StatusPending
		item.Progress = 0.0
		item.ErrorMessage = ""

		if err := st.Upsert(item); err != nil {
			slog.Error("Failed to reset orphaned item", "id", item.ID, "error", err)
			continue
		}

		slog.Info("Reset orphaned item to pending state", "id", item.ID, "title", item.Title)
	}

	if len(orphaned) > 0 {
		slog.Info("Reset orphaned items from previous session", "count", len(orphaned))
	}

	return nil
}

// requeuePendingItems re-admits pending items from a previous session,
// oldest first, so queue order survives restarts.
func requeuePendingItems(st *store.Store, sched *scheduler.Scheduler) {
	pending := st.List(store.Filter{Statuses: []models.ContentStatus{models.StatusPending}})

	for _, item := range pending {
		sched.Admit(item)
		slog.Info("Requeued pending item from previous session",
			"id", item.ID,
			"requested_at", item.RequestedAt)
	}

	if len(pending) > 0 {
		slog.Info("Requeued pending items from previous session", "count", len(pending))
	}
}
