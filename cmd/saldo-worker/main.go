package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"saldo/internal/backend"
	"saldo/internal/config"
	"saldo/internal/events"
	"saldo/internal/log"
	"saldo/internal/worker"
)

const consumerGroup = "saldo-mirror-sync"

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel), Component: log.ComponentWorker})
	log.SetDefault(logger)

	logger.Info("Starting saldo-worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("Worker failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	factory := backend.NewFactory(cfg, logger.Logger)

	store, closeStore, err := factory.Store()
	if err != nil {
		return err
	}
	defer closeStore()

	m, err := factory.Mirror(ctx)
	if err != nil {
		return err
	}
	if m == nil {
		return errors.New("mirror backend is 'none': nothing to sync")
	}

	syncWorker := worker.NewSyncWorker(store, m, logger.Logger)

	g, gctx := errgroup.WithContext(ctx)
	// Periodic reconcile catches commits whose events were lost.
	g.Go(func() error { return syncWorker.Run(gctx, cfg.SyncInterval) })

	_, _, kind := backend.Kinds(cfg)
	switch kind {
	case backend.AMQPEvents:
		client, err := factory.AMQPClient()
		if err != nil {
			return err
		}
		defer client.Close()
		g.Go(func() error {
			return ignoreCanceled(client.ConsumeLedgerCommitted(gctx, syncWorker.HandleAMQPMessage))
		})
	case backend.KafkaEvents:
		consumer := factory.KafkaConsumer(consumerGroup)
		defer consumer.Close()
		// A failed export is left to the periodic reconcile instead of
		// stalling the partition.
		handle := func(ctx context.Context, c events.Change) error {
			if err := syncWorker.HandleChange(ctx, c); err != nil {
				logger.WarnContext(ctx, "Commit sync deferred", log.FieldVersion, c.Version, log.FieldError, err)
			}
			return nil
		}
		g.Go(func() error {
			return ignoreCanceled(consumer.Consume(gctx, handle))
		})
	default:
		logger.Info("No commit events configured; syncing on the interval only",
			"interval", cfg.SyncInterval.String())
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("sync worker: %w", err)
	}
	return nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
