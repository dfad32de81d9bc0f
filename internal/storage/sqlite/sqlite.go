// Package sqlite implements the Ledger Store on a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/storage"

	_ "modernc.org/sqlite"
)

const upsertRecord = `
INSERT INTO ledger_records (key, data, version, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
    data = excluded.data,
    version = excluded.version,
    updated_at = excluded.updated_at
WHERE ledger_records.version < excluded.version`

// Store is the SQLite Ledger Store. Construct one per process and share it.
type Store struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
	db *sql.DB
}

var _ storage.LedgerStore = (*Store)(nil)

// New returns a store for the database at path. Nothing is opened until Init
// or the first read/write.
func New(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: log.For(logger, log.ComponentStorage)}
}

// Init opens the database and applies migrations once per Store. A failed
// Init can be retried.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.handle(ctx)
	return err
}

func (s *Store) handle(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}

	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create db directory: %w", core.ErrStorageUnavailable, err)
		}
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite database: %w", core.ErrStorageUnavailable, err)
	}
	// One connection: every caller serializes through the same handle.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %w", core.ErrStorageUnavailable, err)
	}

	if err := runMigrations(s.path); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
	}

	s.db = db
	s.logger.InfoContext(ctx, "Ledger store opened", "path", s.path)
	return db, nil
}

// GetData returns the persisted ledger, or nil if it was never written.
func (s *Store) GetData(ctx context.Context) (*core.AppData, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}

	var payload string
	err = db.QueryRowContext(ctx, `SELECT data FROM ledger_records WHERE key = ?`, storage.RecordKey).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read ledger record: %w", core.ErrStorageUnavailable, err)
	}

	var data core.AppData
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, fmt.Errorf("%w: decode ledger record: %w", core.ErrStorageUnavailable, err)
	}
	return &data, nil
}

// SaveData replaces the record inside one SQL transaction.
func (s *Store) SaveData(ctx context.Context, data core.AppData) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: encode ledger record: %w", core.ErrWriteFailed, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", core.ErrWriteFailed, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, upsertRecord, storage.RecordKey, string(payload), data.Version, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("%w: upsert ledger record: %w", core.ErrWriteFailed, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %w", core.ErrWriteFailed, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: version %d", core.ErrStaleWrite, data.Version)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", core.ErrWriteFailed, err)
	}

	s.logger.DebugContext(ctx, "Ledger record saved",
		log.FieldVersion, data.Version,
		"transactions", len(data.Transactions),
		log.FieldBalance, data.Balance.String())
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
