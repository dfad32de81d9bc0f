// Package mirror defines the Spreadsheet Mirror: a derived, non-authoritative
// tabular copy of the ledger used for bootstrapping and as a report artifact.
package mirror

import (
	"context"

	"saldo/internal/core"
)

// Ports for outbound adapters.
type (
	// Exporter overwrites the mirror with a full ledger snapshot.
	Exporter interface {
		Export(ctx context.Context, data core.AppData) error
	}

	// Importer reads the mirror back. It returns nil, nil when the mirror is
	// absent, unreadable or malformed; only the caller decides on fallbacks.
	Importer interface {
		Import(ctx context.Context) (*core.AppData, error)
	}

	Mirror interface {
		Exporter
		Importer
	}
)
