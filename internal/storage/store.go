// Package storage defines the durable Ledger Store port. Implementations live
// in the sqlite and memory subpackages.
package storage

import (
	"context"

	"saldo/internal/core"
)

// RecordKey is the fixed key under which the single AppData record is stored.
const RecordKey = "financeData"

// LedgerStore persists exactly one AppData record.
//
// Init is idempotent and must never destroy existing data. GetData returns
// nil when nothing was ever written. SaveData replaces the record wholesale;
// a failed save leaves the previous record intact, and a save whose Version is
// not newer than the stored one fails with core.ErrStaleWrite.
type LedgerStore interface {
	Init(ctx context.Context) error
	GetData(ctx context.Context) (*core.AppData, error)
	SaveData(ctx context.Context, data core.AppData) error
	Close() error
}
