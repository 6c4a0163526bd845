// caixa-worker runs the store maintenance loop: reclaiming soft-deleted job
// rows past the retention window and reporting ledger entries whose job
// reference dangles. It is safe to run alongside any number of servers; all
// of its work is idempotent.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"caixa/internal/config"
	"caixa/internal/log"
	"caixa/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig()).WithComponent(log.ComponentWorker)
	log.SetDefault(logger)

	logger.Info("Starting caixa-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// One sweep at startup, then on the purge interval.
	sweep(ctx, repo, cfg, logger)

	ticker := time.NewTicker(cfg.PurgeInterval)
	defer ticker.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			return
		case <-ticker.C:
			sweep(ctx, repo, cfg, logger)
		}
	}
}

func sweep(ctx context.Context, repo *storage.SQLiteRepository, cfg *config.Config, logger *log.Logger) {
	sctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-cfg.PurgeRetention)
	purged, err := repo.PurgeSoftDeleted(sctx, cutoff)
	if err != nil {
		logger.Error("Purge failed", log.FieldError, err, log.FieldOperation, log.OpPurge)
	} else if purged > 0 {
		logger.Info("Purged soft-deleted rows",
			log.FieldOperation, log.OpPurge, "rows", purged, "cutoff", cutoff)
	}

	// Dangling references are legal (weak refs render as "no job") but a
	// growing count usually means a client bug, so it is worth a log line.
	dangling, err := repo.CountDanglingJobRefs(sctx, cfg.Owner)
	if err != nil {
		logger.Error("Dangling-reference check failed", log.FieldError, err)
	} else if dangling > 0 {
		logger.Warn("Ledger entries reference missing jobs",
			log.FieldOwner, cfg.Owner, "count", dangling)
	}
}
