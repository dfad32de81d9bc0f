package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"saldo/internal/amqp"
	"saldo/internal/core"
	"saldo/internal/events"
	"saldo/internal/log"
	"saldo/internal/mirror"
	"saldo/internal/storage"
)

// ErrBehind is returned when the store has not yet caught up with an
// announced version; the message should be redelivered.
var ErrBehind = errors.New("store behind announced version")

// SyncWorker exports committed ledger snapshots from the store to the
// spreadsheet mirror. It reacts to commit events and also reconciles on a
// timer in case events were lost.
type SyncWorker struct {
	store  storage.LedgerStore
	mirror mirror.Exporter
	logger *slog.Logger

	mu       sync.Mutex
	exported int64
}

func NewSyncWorker(store storage.LedgerStore, m mirror.Exporter, logger *slog.Logger) *SyncWorker {
	return &SyncWorker{
		store:    store,
		mirror:   m,
		logger:   log.For(logger, log.ComponentWorker),
		exported: -1,
	}
}

// HandleAMQPMessage processes a commit announced over AMQP.
func (w *SyncWorker) HandleAMQPMessage(ctx context.Context, msg *amqp.LedgerCommittedMessage) error {
	return w.HandleCommit(ctx, msg.Version)
}

// HandleChange processes a commit read from Kafka.
func (w *SyncWorker) HandleChange(ctx context.Context, c events.Change) error {
	return w.HandleCommit(ctx, c.Version)
}

// HandleCommit exports the store's snapshot unless version was already exported.
func (w *SyncWorker) HandleCommit(ctx context.Context, version int64) error {
	if version <= w.Exported() {
		w.logger.DebugContext(ctx, "Version already mirrored, skipping", log.FieldVersion, version)
		return nil
	}
	data, err := w.sync(ctx)
	if err != nil {
		return err
	}
	if data == nil || data.Version < version {
		return fmt.Errorf("%w: want %d", ErrBehind, version)
	}
	return nil
}

// Reconcile exports the current store snapshot if it is newer than the last
// export.
func (w *SyncWorker) Reconcile(ctx context.Context) error {
	_, err := w.sync(ctx)
	return err
}

// Exported reports the last version written to the mirror, or -1.
func (w *SyncWorker) Exported() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.exported
}

func (w *SyncWorker) sync(ctx context.Context) (*core.AppData, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := w.store.GetData(ctx)
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	if data == nil {
		w.logger.DebugContext(ctx, "Store is empty, nothing to mirror")
		return nil, nil
	}
	if data.Version <= w.exported {
		return data, nil
	}

	start := time.Now()
	if err := w.mirror.Export(ctx, *data); err != nil {
		return nil, fmt.Errorf("export version %d: %w", data.Version, err)
	}
	w.exported = data.Version

	w.logger.InfoContext(ctx, "Mirror synced",
		log.FieldOperation, log.OpSync,
		log.FieldVersion, data.Version,
		log.FieldDuration, time.Since(start))
	return data, nil
}

// Run reconciles once at startup and then every interval until ctx is done.
func (w *SyncWorker) Run(ctx context.Context, interval time.Duration) error {
	if err := w.Reconcile(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup sync failed", log.FieldError, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.Reconcile(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic sync failed", log.FieldError, err)
			}
		}
	}
}
