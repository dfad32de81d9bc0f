package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"saldo/internal/alerts"
	"saldo/internal/backend"
	"saldo/internal/cache"
	"saldo/internal/config"
	"saldo/internal/core"
	"saldo/internal/events"
	apphttp "saldo/internal/http"
	"saldo/internal/ledger"
	"saldo/internal/log"
	"saldo/internal/rates"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel), Component: log.ComponentApp})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
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

	publisher, closePublisher, err := factory.Publisher()
	if err != nil {
		// The broker is best effort; the ledger works without it.
		logger.Warn("Commit events disabled", log.FieldError, err)
	} else if closePublisher != nil {
		defer closePublisher()
	}

	broadcaster := events.NewBroadcaster()
	notifiers := events.Fanout{broadcaster}
	if publisher != nil {
		notifiers = append(notifiers, publisher)
	}

	opts := []ledger.Option{
		ledger.WithNotifier(notifiers),
		ledger.WithOpeningBalance(cfg.OpeningBalance()),
		ledger.WithCurrency(cfg.Currency),
		ledger.WithLogger(logger.Logger),
	}
	if m != nil {
		opts = append(opts, ledger.WithMirror(m, cfg.MirrorExportOnCommit))
	}
	svc := ledger.New(store, opts...)
	if _, err := svc.Load(ctx); err != nil {
		// Requests retry the load; /readyz reports the failure meanwhile.
		logger.Error("Initial ledger load failed", log.FieldOperation, log.OpStartup, log.FieldError, err)
	}

	signalCh, unsubscribe := broadcaster.Subscribe()
	defer unsubscribe()
	monitor := alerts.NewMonitor(svc, cfg.AlertInterval, cfg.Currency, func(ns []core.Notification) {
		logger.Info("Alerts evaluated",
			log.FieldNotifications, len(ns),
			log.FieldSeverity, core.HighestSeverity(ns).String())
	}, logger.Logger)

	caches := cache.NewManager(logger.Logger)
	serverOpts := apphttp.Options{
		Addr:     ":" + cfg.Port,
		Ledger:   svc,
		Currency: cfg.Currency,
		Ready:    store.Init,
	}
	if cfg.RatesURL != "" {
		rc := rates.NewClient(cfg.RatesURL, cfg.RatesTTL, nil, logger.Logger)
		caches.Register(rc.Cache())
		serverOpts.Rates = rc
	}
	srv := apphttp.NewServer(serverOpts, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting saldo server",
			"port", cfg.Port,
			"data_backend", cfg.DataBackend,
			"mirror_backend", cfg.MirrorBackend,
			"events_backend", cfg.EventsBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on :%s: %w", cfg.Port, err)
		}
		return nil
	})
	g.Go(func() error { return monitor.Run(gctx, signalCh) })
	g.Go(func() error { return caches.Run(gctx, time.Minute) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
