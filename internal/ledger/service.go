// Package ledger is the Balance & Transaction Engine: the only place balance
// deltas are computed and the single writer of the Ledger Store.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"saldo/internal/alerts"
	"saldo/internal/core"
	"saldo/internal/events"
	"saldo/internal/log"
	"saldo/internal/mirror"
	"saldo/internal/storage"
)

// ErrNoMirror is returned by ExportMirror when no mirror is configured.
var ErrNoMirror = errors.New("no mirror configured")

// DefaultOpeningBalance seeds a ledger on a clean first run.
var DefaultOpeningBalance = decimal.NewFromInt(1000)

type Service struct {
	store          storage.LedgerStore
	mirror         mirror.Mirror
	exportOnCommit bool
	notifier       events.Notifier
	now            func() time.Time
	newID          func() string
	openingBalance decimal.Decimal
	currency       string
	logger         *slog.Logger

	mu   sync.Mutex
	data *core.AppData
}

type Option func(*Service)

// WithMirror adds the mirror to the load chain and, when exportOnCommit is
// set, exports every committed snapshot to it.
func WithMirror(m mirror.Mirror, exportOnCommit bool) Option {
	return func(s *Service) {
		s.mirror = m
		s.exportOnCommit = exportOnCommit
	}
}

func WithNotifier(n events.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

func WithOpeningBalance(b decimal.Decimal) Option {
	return func(s *Service) { s.openingBalance = b }
}

func WithCurrency(code string) Option {
	return func(s *Service) {
		if code != "" {
			s.currency = code
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = log.For(l, log.ComponentLedger) }
}

func New(store storage.LedgerStore, opts ...Option) *Service {
	s := &Service{
		store:          store,
		now:            time.Now,
		newID:          uuid.NewString,
		openingBalance: DefaultOpeningBalance,
		currency:       core.DefaultCurrency,
		logger:         log.For(nil, log.ComponentLedger),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load resolves the ledger from store, then mirror, then defaults, and makes
// it the in-memory view. A record found outside the store is committed to it.
func (s *Service) Load(ctx context.Context) (core.AppData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		return core.AppData{}, err
	}
	return s.data.Clone(), nil
}

func (s *Service) sources() []Source {
	srcs := []Source{StoreSource(s.store)}
	if s.mirror != nil {
		srcs = append(srcs, MirrorSource(s.mirror))
	}
	return append(srcs, DefaultsSource(s.openingBalance))
}

func (s *Service) loadLocked(ctx context.Context) error {
	if err := s.store.Init(ctx); err != nil {
		s.logger.WarnContext(ctx, "Ledger store init failed", log.FieldError, err)
	}
	data, from, err := Resolve(ctx, s.sources(), s.logger)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}

	if from != sourceStore {
		data.Version++
		if err := s.store.SaveData(ctx, data); err != nil {
			s.logger.WarnContext(ctx, "Could not persist bootstrapped ledger", log.FieldSource, from, log.FieldError, err)
			if errors.Is(err, core.ErrStaleWrite) && s.reloadLocked(ctx) {
				// The store held a newer record than the read that failed.
				data, from = *s.data, sourceStore
			} else {
				// Keep the resolved view; the next successful commit persists it.
				data.Version--
			}
		}
	}

	s.data = &data
	s.logger.InfoContext(ctx, "Ledger loaded",
		log.FieldSource, from,
		log.FieldVersion, data.Version,
		log.FieldBalance, data.Balance.String(),
		"transactions", len(data.Transactions))
	return nil
}

// Snapshot returns a copy of the committed view, and false before the first Load.
func (s *Service) Snapshot() (core.AppData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return core.AppData{}, false
	}
	return s.data.Clone(), true
}

// Transactions returns the committed transactions in insertion order.
func (s *Service) Transactions() []core.Transaction {
	d, _ := s.Snapshot()
	return d.Transactions
}

// EvaluateAlerts evaluates data as of the service clock.
func (s *Service) EvaluateAlerts(data core.AppData) []core.Notification {
	return alerts.EvaluateIn(data, s.now(), s.currency)
}

func (s *Service) AddTransaction(ctx context.Context, in core.TransactionInput) (core.AppData, error) {
	if err := in.Validate(); err != nil {
		return core.AppData{}, err
	}
	return s.mutate(ctx, log.OpAdd, func(d *core.AppData) error {
		t := core.Transaction{
			ID:          s.newID(),
			Date:        in.Date,
			Amount:      in.Type.Signed(in.Amount),
			Category:    in.Category,
			Description: in.Description,
			Type:        in.Type,
			IsEssential: in.IsEssential,
		}
		d.Transactions = append(d.Transactions, t)
		d.Balance = d.Balance.Add(t.Amount)
		return nil
	})
}

// EditTransaction replaces the transaction in place, keeping its id, position
// and stored type. A differing input type is rejected with core.ErrTypeChange.
func (s *Service) EditTransaction(ctx context.Context, id string, in core.TransactionInput) (core.AppData, error) {
	return s.mutate(ctx, log.OpEdit, func(d *core.AppData) error {
		idx := d.IndexOf(id)
		if idx < 0 {
			return fmt.Errorf("%w: transaction %q", core.ErrNotFound, id)
		}
		old := d.Transactions[idx]
		if in.Type == "" {
			in.Type = old.Type
		}
		if in.Type != old.Type {
			return fmt.Errorf("%w: %s to %s", core.ErrTypeChange, old.Type, in.Type)
		}
		if err := in.Validate(); err != nil {
			return err
		}
		signed := old.Type.Signed(in.Amount)
		d.Balance = d.Balance.Add(signed.Sub(old.Amount))
		d.Transactions[idx] = core.Transaction{
			ID:          old.ID,
			Date:        in.Date,
			Amount:      signed,
			Category:    in.Category,
			Description: in.Description,
			Type:        old.Type,
			IsEssential: in.IsEssential,
		}
		return nil
	})
}

func (s *Service) DeleteTransaction(ctx context.Context, id string) (core.AppData, error) {
	return s.mutate(ctx, log.OpDelete, func(d *core.AppData) error {
		idx := d.IndexOf(id)
		if idx < 0 {
			return fmt.Errorf("%w: transaction %q", core.ErrNotFound, id)
		}
		d.Balance = d.Balance.Sub(d.Transactions[idx].Amount)
		d.Transactions = append(d.Transactions[:idx], d.Transactions[idx+1:]...)
		return nil
	})
}

func (s *Service) SaveAlertSettings(ctx context.Context, settings core.AlertSettings) (core.AppData, error) {
	if err := settings.Validate(); err != nil {
		return core.AppData{}, err
	}
	if settings.CategoryAlerts == nil {
		settings.CategoryAlerts = []core.CategoryAlert{}
	}
	return s.mutate(ctx, log.OpSettings, func(d *core.AppData) error {
		d.AlertSettings = settings
		d.AlertSettings.CategoryAlerts = append([]core.CategoryAlert{}, settings.CategoryAlerts...)
		return nil
	})
}

// mutate applies fn to a copy of the view, commits it, and only then swaps it in.
func (s *Service) mutate(ctx context.Context, op string, fn func(*core.AppData) error) (core.AppData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		if err := s.loadLocked(ctx); err != nil {
			return core.AppData{}, err
		}
	}

	next := s.data.Clone()
	if err := fn(&next); err != nil {
		return core.AppData{}, err
	}
	next.Version = s.data.Version + 1

	if err := s.store.SaveData(ctx, next); err != nil {
		s.logger.ErrorContext(ctx, "Ledger commit failed", log.FieldOperation, op, log.FieldVersion, next.Version, log.FieldError, err)
		if errors.Is(err, core.ErrStaleWrite) {
			s.reloadLocked(ctx)
		}
		return core.AppData{}, fmt.Errorf("%s: %w", op, err)
	}
	s.data = &next

	s.logger.InfoContext(ctx, "Ledger committed",
		log.NewFields().WithOperation(op).WithLedger(next.Balance.String(), next.Version).ToSlice()...)
	s.afterCommit(ctx, op, next)
	return next.Clone(), nil
}

// reloadLocked replaces the view with the store's record after another writer
// won, and reports whether it did.
func (s *Service) reloadLocked(ctx context.Context) bool {
	data, err := s.store.GetData(ctx)
	if err != nil || data == nil {
		s.logger.WarnContext(ctx, "Could not refresh ledger after stale write", log.FieldError, err)
		return false
	}
	fresh := normalize(*data)
	s.data = &fresh
	return true
}

// afterCommit runs the best-effort side effects; their failures never undo a commit.
func (s *Service) afterCommit(ctx context.Context, op string, data core.AppData) {
	if s.mirror != nil && s.exportOnCommit {
		if err := s.mirror.Export(ctx, data); err != nil {
			s.logger.WarnContext(ctx, "Mirror export failed", log.FieldOperation, op, log.FieldError, err)
		}
	}
	if s.notifier != nil {
		c := events.Change{Version: data.Version, Operation: op, Timestamp: s.now().UTC()}
		if err := s.notifier.Notify(ctx, c); err != nil {
			s.logger.WarnContext(ctx, "Change notification failed", log.FieldOperation, op, log.FieldError, err)
		}
	}
}

// ExportMirror writes the committed view to the mirror on demand.
func (s *Service) ExportMirror(ctx context.Context) error {
	if s.mirror == nil {
		return ErrNoMirror
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		if err := s.loadLocked(ctx); err != nil {
			return err
		}
	}
	if err := s.mirror.Export(ctx, *s.data); err != nil {
		return fmt.Errorf("%s: %w", log.OpExport, err)
	}
	return nil
}
