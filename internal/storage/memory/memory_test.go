package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

func TestMemoryStoreSaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := New()

	got, err := s.GetData(ctx)
	if err != nil || got != nil {
		t.Fatalf("expected empty store, got %v err=%v", got, err)
	}

	d := core.NewAppData(decimal.NewFromInt(300))
	d.Version = 1
	if err := s.SaveData(ctx, d); err != nil {
		t.Fatalf("SaveData: %v", err)
	}

	got, _ = s.GetData(ctx)
	got.Balance = decimal.Zero
	again, _ := s.GetData(ctx)
	if !again.Balance.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("GetData must return a copy, stored balance changed to %s", again.Balance)
	}
	if s.Saves() != 1 {
		t.Fatalf("expected 1 save, got %d", s.Saves())
	}
}

func TestMemoryStoreFailures(t *testing.T) {
	ctx := context.Background()
	d := core.NewAppData(decimal.NewFromInt(1))
	d.Version = 5
	s := NewWithData(d)

	if err := s.SaveData(ctx, d); !errors.Is(err, core.ErrStaleWrite) {
		t.Fatalf("expected stale write, got %v", err)
	}

	s.SetFailWrites(true)
	d.Version = 6
	if err := s.SaveData(ctx, d); !errors.Is(err, core.ErrWriteFailed) {
		t.Fatalf("expected write failure, got %v", err)
	}

	s.FailReads = true
	if _, err := s.GetData(ctx); !errors.Is(err, core.ErrStorageUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}
