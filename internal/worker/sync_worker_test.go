package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/amqp"
	"saldo/internal/core"
	"saldo/internal/events"
	mirrormem "saldo/internal/mirror/memory"
	storemem "saldo/internal/storage/memory"
)

func ledgerAt(version int64) core.AppData {
	d := core.NewAppData(decimal.NewFromInt(1000))
	d.Version = version
	return d
}

func TestHandleCommitExportsOncePerVersion(t *testing.T) {
	ctx := context.Background()
	store := storemem.NewWithData(ledgerAt(3))
	m := mirrormem.New()
	w := NewSyncWorker(store, m, nil)

	if err := w.HandleAMQPMessage(ctx, &amqp.LedgerCommittedMessage{Version: 3}); err != nil {
		t.Fatalf("HandleAMQPMessage: %v", err)
	}
	if err := w.HandleChange(ctx, events.Change{Version: 2}); err != nil {
		t.Fatalf("HandleChange: %v", err)
	}
	if err := w.HandleCommit(ctx, 3); err != nil {
		t.Fatalf("HandleCommit: %v", err)
	}
	if m.Exports() != 1 {
		t.Fatalf("exports = %d, want 1", m.Exports())
	}
	if w.Exported() != 3 {
		t.Fatalf("exported version = %d, want 3", w.Exported())
	}

	got, err := m.Import(ctx)
	if err != nil || got == nil || got.Version != 3 {
		t.Fatalf("mirror holds %+v (%v), want version 3", got, err)
	}
}

func TestHandleCommitStoreBehind(t *testing.T) {
	w := NewSyncWorker(storemem.NewWithData(ledgerAt(2)), mirrormem.New(), nil)
	if err := w.HandleCommit(context.Background(), 5); !errors.Is(err, ErrBehind) {
		t.Fatalf("expected ErrBehind, got %v", err)
	}
	if err := w.HandleCommit(context.Background(), 1); err != nil {
		t.Fatalf("old version should be a no-op, got %v", err)
	}
}

func TestHandleCommitEmptyStore(t *testing.T) {
	w := NewSyncWorker(storemem.New(), mirrormem.New(), nil)
	if err := w.HandleCommit(context.Background(), 1); !errors.Is(err, ErrBehind) {
		t.Fatalf("expected ErrBehind, got %v", err)
	}
	if err := w.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile on empty store: %v", err)
	}
}

func TestHandleCommitExportFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	m := mirrormem.New()
	m.FailExports = true
	w := NewSyncWorker(storemem.NewWithData(ledgerAt(1)), m, nil)

	if err := w.HandleCommit(ctx, 1); err == nil {
		t.Fatal("expected export failure")
	}
	if w.Exported() != -1 {
		t.Fatalf("failed export recorded as done: %d", w.Exported())
	}

	m.FailExports = false
	if err := w.HandleCommit(ctx, 1); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if m.Exports() != 1 {
		t.Fatalf("exports = %d, want 1", m.Exports())
	}
}

func TestHandleCommitStoreUnavailable(t *testing.T) {
	store := storemem.New()
	store.FailReads = true
	w := NewSyncWorker(store, mirrormem.New(), nil)
	if err := w.HandleCommit(context.Background(), 1); !errors.Is(err, core.ErrStorageUnavailable) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestRunReconcilesAtStartupAndOnTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := storemem.NewWithData(ledgerAt(1))
	m := mirrormem.New()
	w := NewSyncWorker(store, m, nil)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, 10*time.Millisecond) }()

	waitFor(t, func() bool { return w.Exported() == 1 })

	if err := store.SaveData(ctx, ledgerAt(2)); err != nil {
		t.Fatalf("SaveData: %v", err)
	}
	waitFor(t, func() bool { return w.Exported() == 2 })

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if m.Exports() != 2 {
		t.Fatalf("exports = %d, want 2", m.Exports())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
