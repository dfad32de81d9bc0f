package backend

import (
	"context"

	"saldo/internal/config"
	"saldo/internal/events"
	"saldo/internal/mirror"
	"saldo/internal/storage"
)

// CleanupFunc releases a resource created by the factory.
type CleanupFunc func() error

// StoreKind selects the Ledger Store implementation.
type StoreKind string

const (
	SQLiteStore StoreKind = "sqlite"
	MemoryStore StoreKind = "memory"
)

// IsValid returns true if the store kind is known.
func (k StoreKind) IsValid() bool {
	return k == SQLiteStore || k == MemoryStore
}

// MirrorKind selects the Spreadsheet Mirror implementation.
type MirrorKind string

const (
	XLSXMirror   MirrorKind = "xlsx"
	SheetsMirror MirrorKind = "sheets"
	MemoryMirror MirrorKind = "memory"
	NoMirror     MirrorKind = "none"
)

func (k MirrorKind) IsValid() bool {
	switch k {
	case XLSXMirror, SheetsMirror, MemoryMirror, NoMirror:
		return true
	}
	return false
}

// EventsKind selects the broker commit events go to.
type EventsKind string

const (
	NoEvents    EventsKind = "none"
	AMQPEvents  EventsKind = "amqp"
	KafkaEvents EventsKind = "kafka"
)

func (k EventsKind) IsValid() bool {
	switch k {
	case NoEvents, AMQPEvents, KafkaEvents:
		return true
	}
	return false
}

// Factory builds the ledger's collaborators from configuration.
type Factory interface {
	Store() (storage.LedgerStore, CleanupFunc, error)
	// Mirror returns nil when the mirror is disabled.
	Mirror(ctx context.Context) (mirror.Mirror, error)
	// Publisher returns nil when no broker is configured.
	Publisher() (events.Notifier, CleanupFunc, error)
}

// Kinds extracts the backend selections from the application config.
func Kinds(cfg *config.Config) (StoreKind, MirrorKind, EventsKind) {
	return StoreKind(cfg.DataBackend), MirrorKind(cfg.MirrorBackend), EventsKind(cfg.EventsBackend)
}
