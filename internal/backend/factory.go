// Package backend turns configuration into the ledger's store, mirror and
// commit event publisher.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"saldo/internal/amqp"
	"saldo/internal/config"
	"saldo/internal/events"
	"saldo/internal/kafka"
	"saldo/internal/log"
	"saldo/internal/mirror"
	gmirror "saldo/internal/mirror/google"
	mirrormem "saldo/internal/mirror/memory"
	"saldo/internal/mirror/xlsx"
	"saldo/internal/storage"
	storemem "saldo/internal/storage/memory"
	"saldo/internal/storage/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	cfg    *config.Config
	logger *slog.Logger
}

var _ Factory = (*DefaultFactory)(nil)

// NewFactory creates a factory for a validated config.
func NewFactory(cfg *config.Config, logger *slog.Logger) *DefaultFactory {
	return &DefaultFactory{cfg: cfg, logger: log.For(logger, log.ComponentApp)}
}

func (f *DefaultFactory) Store() (storage.LedgerStore, CleanupFunc, error) {
	kind, _, _ := Kinds(f.cfg)
	switch kind {
	case SQLiteStore:
		s := sqlite.New(f.cfg.SQLiteDBPath, f.logger)
		f.logger.Info("Initialized SQLite store", "db_path", f.cfg.SQLiteDBPath)
		return s, s.Close, nil
	case MemoryStore:
		s := storemem.New()
		f.logger.Warn("Using in-memory store; the ledger will not survive a restart")
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unsupported data backend: %s", kind)
}

func (f *DefaultFactory) Mirror(ctx context.Context) (mirror.Mirror, error) {
	_, kind, _ := Kinds(f.cfg)
	switch kind {
	case XLSXMirror:
		f.logger.Info("Initialized xlsx mirror", "path", f.cfg.MirrorPath)
		return xlsx.New(f.cfg.MirrorPath, f.logger), nil
	case SheetsMirror:
		cli, err := gmirror.New(ctx, gmirror.Options{
			SpreadsheetID:      f.cfg.GoogleSpreadsheetID,
			ServiceAccountJSON: f.cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: f.cfg.GoogleServiceAccountFile,
		}, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets mirror: %w", err)
		}
		f.logger.Info("Initialized Google Sheets mirror", "spreadsheet_id", f.cfg.GoogleSpreadsheetID)
		return cli, nil
	case MemoryMirror:
		return mirrormem.New(), nil
	case NoMirror:
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported mirror backend: %s", kind)
}

func (f *DefaultFactory) Publisher() (events.Notifier, CleanupFunc, error) {
	_, _, kind := Kinds(f.cfg)
	switch kind {
	case AMQPEvents:
		c, err := f.AMQPClient()
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	case KafkaEvents:
		p := kafka.NewPublisher(f.cfg.KafkaBrokers, f.cfg.KafkaTopic, f.logger)
		f.logger.Info("Initialized Kafka publisher", "brokers", f.cfg.KafkaBrokers, "topic", f.cfg.KafkaTopic)
		return p, p.Close, nil
	case NoEvents:
		return nil, nil, nil
	}
	return nil, nil, fmt.Errorf("unsupported events backend: %s", kind)
}

// AMQPClient dials the configured broker.
func (f *DefaultFactory) AMQPClient() (*amqp.Client, error) {
	c, err := amqp.NewClient(f.cfg.AMQPURL, f.cfg.AMQPExchange, f.cfg.AMQPQueue, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
	}
	f.logger.Info("Initialized AMQP client", "exchange", f.cfg.AMQPExchange, "queue", f.cfg.AMQPQueue)
	return c, nil
}

// KafkaConsumer joins the worker consumer group on the commit topic.
func (f *DefaultFactory) KafkaConsumer(groupID string) *kafka.Consumer {
	return kafka.NewConsumer(f.cfg.KafkaBrokers, f.cfg.KafkaTopic, groupID, f.logger)
}
