package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/mirror"
	"saldo/internal/storage"
)

// Source is one provider in the load chain. Fetch returns nil, nil when it has
// nothing to offer.
type Source struct {
	Name  string
	Fetch func(ctx context.Context) (*core.AppData, error)
	// OnlyIfClean skips the source once an earlier one failed, so a broken
	// store never shows up as a fresh ledger.
	OnlyIfClean bool
}

const (
	sourceStore    = "store"
	sourceMirror   = "mirror"
	sourceDefaults = "defaults"
)

func StoreSource(s storage.LedgerStore) Source {
	return Source{Name: sourceStore, Fetch: s.GetData}
}

func MirrorSource(m mirror.Importer) Source {
	return Source{Name: sourceMirror, Fetch: m.Import}
}

// DefaultsSource yields a first-run ledger with the given opening balance.
func DefaultsSource(balance decimal.Decimal) Source {
	return Source{
		Name: sourceDefaults,
		Fetch: func(context.Context) (*core.AppData, error) {
			d := core.NewAppData(balance)
			return &d, nil
		},
		OnlyIfClean: true,
	}
}

// Resolve returns the first record any source yields, with that source's name.
func Resolve(ctx context.Context, sources []Source, logger *slog.Logger) (core.AppData, string, error) {
	var lastErr error
	for _, src := range sources {
		if src.OnlyIfClean && lastErr != nil {
			logger.WarnContext(ctx, "Skipping source after earlier failure", log.FieldSource, src.Name)
			continue
		}
		data, err := src.Fetch(ctx)
		if err != nil {
			logger.WarnContext(ctx, "Ledger source failed", log.FieldSource, src.Name, log.FieldError, err)
			lastErr = err
			continue
		}
		if data == nil {
			continue
		}
		return normalize(*data), src.Name, nil
	}
	if lastErr != nil {
		return core.AppData{}, "", fmt.Errorf("%w: %w", core.ErrNoData, lastErr)
	}
	return core.AppData{}, "", core.ErrNoData
}

func normalize(d core.AppData) core.AppData {
	if d.Transactions == nil {
		d.Transactions = []core.Transaction{}
	}
	if d.AlertSettings.CategoryAlerts == nil {
		d.AlertSettings.CategoryAlerts = []core.CategoryAlert{}
	}
	return d
}
