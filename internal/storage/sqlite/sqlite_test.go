package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

func sample(version int64, balance string) core.AppData {
	d := core.NewAppData(decimal.RequireFromString(balance))
	d.Version = version
	d.Transactions = append(d.Transactions, core.Transaction{
		ID:          "tx-1",
		Date:        time.Date(2025, 4, 2, 10, 30, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("-50"),
		Category:    "Food",
		Description: "lunch",
		Type:        core.Expense,
		IsEssential: core.Bool(true),
	})
	return d
}

func TestStoreGetDataEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nested", "ledger.db"), nil)
	defer s.Close()

	got, err := s.GetData(context.Background())
	if err != nil {
		t.Fatalf("GetData: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil record on a fresh store, got %+v", got)
	}
}

func TestStoreSaveAndReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	s := New(path, nil)
	if err := s.SaveData(ctx, sample(1, "150")); err != nil {
		t.Fatalf("SaveData: %v", err)
	}
	s.Close()

	// Re-initialising must not wipe the existing record.
	s = New(path, nil)
	defer s.Close()
	for i := 0; i < 2; i++ {
		if err := s.Init(ctx); err != nil {
			t.Fatalf("Init #%d: %v", i, err)
		}
	}

	got, err := s.GetData(ctx)
	if err != nil || got == nil {
		t.Fatalf("GetData: %v %v", got, err)
	}
	if !got.Balance.Equal(decimal.RequireFromString("150")) || got.Version != 1 {
		t.Fatalf("unexpected record: balance=%s version=%d", got.Balance, got.Version)
	}
	if len(got.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(got.Transactions))
	}
	tx := got.Transactions[0]
	if !tx.Date.Equal(time.Date(2025, 4, 2, 10, 30, 0, 0, time.UTC)) || !tx.Essential() || !tx.Amount.Equal(decimal.RequireFromString("-50")) {
		t.Fatalf("transaction did not round-trip: %+v", tx)
	}
}

func TestStoreRejectsStaleWriteAndKeepsRecord(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "ledger.db"), nil)
	defer s.Close()

	if err := s.SaveData(ctx, sample(2, "200")); err != nil {
		t.Fatalf("SaveData v2: %v", err)
	}

	for _, v := range []int64{1, 2} {
		err := s.SaveData(ctx, sample(v, "999"))
		if !errors.Is(err, core.ErrStaleWrite) || !errors.Is(err, core.ErrWriteFailed) {
			t.Fatalf("version %d: expected stale write, got %v", v, err)
		}
	}

	got, err := s.GetData(ctx)
	if err != nil {
		t.Fatalf("GetData: %v", err)
	}
	if !got.Balance.Equal(decimal.RequireFromString("200")) {
		t.Fatalf("rejected write changed the record: %s", got.Balance)
	}

	if err := s.SaveData(ctx, sample(3, "300")); err != nil {
		t.Fatalf("SaveData v3: %v", err)
	}
}

func TestStoreUnavailable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(filepath.Join(blocker, "ledger.db"), nil)
	err := s.Init(context.Background())
	if !errors.Is(err, core.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if _, err := s.GetData(context.Background()); !errors.Is(err, core.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable from GetData, got %v", err)
	}
}
