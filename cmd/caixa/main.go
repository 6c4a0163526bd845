package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"caixa/internal/amqp"
	"caixa/internal/bus"
	"caixa/internal/config"
	apphttp "caixa/internal/http"
	"caixa/internal/log"
	"caixa/internal/mirror"
	"caixa/internal/prefs"
	"caixa/internal/services"
	"caixa/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	logger.Info("Starting caixa server")

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

	// The AMQP channel is optional; without it the instance runs standalone
	// and only re-syncs on the periodic refresh.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing standalone", log.FieldError, err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP change channel initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - changes will not propagate to other sessions")
	}

	var notifier mirror.Notifier
	var svcNotifier services.Notifier
	if amqpClient != nil {
		notifier = amqpClient
		svcNotifier = amqpClient
	}

	b := bus.New()
	m := mirror.New(cfg.Owner, repo, notifier, b, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Load(ctx); err != nil {
		// The server still starts; the next refresh or notification retries.
		logger.Warn("Initial mirror load failed, starting with empty snapshot", log.FieldError, err)
	}

	finance := services.NewFinanceService(m, repo, svcNotifier, b, logger)
	prefsSvc := prefs.NewService(repo, cfg.Owner, b, logger)

	srv := apphttp.NewServer(":"+cfg.Port, m, finance, prefsSvc, logger)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Re-sync on change notifications from other sessions.
	if amqpClient != nil {
		go func() {
			err := amqp.ConsumeChangesWithRetry(ctx, cfg.AMQPURL, cfg.AMQPExchange, func(msg *amqp.ChangeMessage) error {
				if msg.Owner != cfg.Owner {
					return nil
				}
				if msg.Collection == amqp.CollectionReceivables {
					b.Publish(bus.TopicReceivablesUpdated, msg.Owner)
					return nil
				}
				if err := m.Load(ctx); err != nil {
					return err
				}
				b.Publish(bus.TopicFinanceUpdated, msg.Owner)
				return nil
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Change consumption stopped", log.FieldError, err)
			}
		}()
	}

	// Periodic refresh catches anything the notification channel missed.
	go func() {
		ticker := time.NewTicker(cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.Load(ctx); err != nil {
					logger.Warn("Periodic mirror refresh failed", log.FieldError, err)
				}
			}
		}
	}()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		// Drain the fire-and-forget store writes before closing the database.
		m.Flush()
		cancel()
	}()

	logger.Info("Starting HTTP server", "port", cfg.Port, log.FieldOwner, cfg.Owner)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped")
}
