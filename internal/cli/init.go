// Package cli implements the saldoctl subcommands on top of the ledger service.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/subcommands"

	"saldo/internal/backend"
	"saldo/internal/config"
	"saldo/internal/core"
	"saldo/internal/events"
	"saldo/internal/ledger"
	"saldo/internal/log"
)

// Ledger is what the subcommands drive; ledger.Service implements it.
type Ledger interface {
	Load(ctx context.Context) (core.AppData, error)
	AddTransaction(ctx context.Context, in core.TransactionInput) (core.AppData, error)
	EditTransaction(ctx context.Context, id string, in core.TransactionInput) (core.AppData, error)
	DeleteTransaction(ctx context.Context, id string) (core.AppData, error)
	SaveAlertSettings(ctx context.Context, settings core.AlertSettings) (core.AppData, error)
	EvaluateAlerts(data core.AppData) []core.Notification
	ExportMirror(ctx context.Context) error
}

// OpenFunc opens the ledger and returns a func releasing what it opened.
type OpenFunc func(ctx context.Context) (Ledger, func() error, error)

// App is the state shared by every subcommand.
type App struct {
	Out      io.Writer
	Err      io.Writer
	Currency string
	Now      func() time.Time
	Open     OpenFunc
	logger   *slog.Logger
}

// NewApp wires the subcommands to the backends selected by cfg.
func NewApp(cfg *config.Config, logger *log.Logger, out io.Writer) *App {
	return &App{
		Out:      out,
		Err:      os.Stderr,
		Currency: cfg.Currency,
		Now:      time.Now,
		Open:     openFromConfig(cfg, logger.Logger),
		logger:   log.For(logger.Logger, log.ComponentCLI),
	}
}

// Register adds the subcommands to c.
func (a *App) Register(c *subcommands.Commander) {
	c.Register(&addCmd{app: a}, "transactions")
	c.Register(&editCmd{app: a}, "transactions")
	c.Register(&deleteCmd{app: a}, "transactions")
	c.Register(&listCmd{app: a}, "transactions")

	c.Register(&alertsCmd{app: a}, "alerts")
	c.Register(&settingsCmd{app: a}, "alerts")

	c.Register(&exportCmd{app: a}, "reports")
	c.Register(&reportCmd{app: a}, "reports")
}

// openFromConfig builds a ledger service the way the server does, so CLI
// commits reach the mirror and the broker too.
func openFromConfig(cfg *config.Config, logger *slog.Logger) OpenFunc {
	return func(ctx context.Context) (Ledger, func() error, error) {
		factory := backend.NewFactory(cfg, logger)

		store, closeStore, err := factory.Store()
		if err != nil {
			return nil, nil, err
		}
		closers := []func() error{closeStore}
		closeAll := func() error {
			var errs []error
			for i := len(closers) - 1; i >= 0; i-- {
				errs = append(errs, closers[i]())
			}
			return errors.Join(errs...)
		}

		m, err := factory.Mirror(ctx)
		if err != nil {
			closeAll()
			return nil, nil, err
		}

		opts := []ledger.Option{
			ledger.WithOpeningBalance(cfg.OpeningBalance()),
			ledger.WithCurrency(cfg.Currency),
			ledger.WithLogger(logger),
		}
		if m != nil {
			opts = append(opts, ledger.WithMirror(m, cfg.MirrorExportOnCommit))
		}

		publisher, closePublisher, err := factory.Publisher()
		switch {
		case err != nil:
			logger.Warn("Commit events disabled", log.FieldError, err)
		case publisher != nil:
			closers = append(closers, closePublisher)
			opts = append(opts, ledger.WithNotifier(events.Fanout{publisher}))
		}

		return ledger.New(store, opts...), closeAll, nil
	}
}

// withLedger opens the ledger, loads it and runs fn.
func (a *App) withLedger(ctx context.Context, fn func(l Ledger, data core.AppData) error) error {
	l, closeFn, err := a.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFn(); err != nil {
			a.log().WarnContext(ctx, "Close failed", log.FieldError, err)
		}
	}()
	data, err := l.Load(ctx)
	if err != nil {
		return err
	}
	return fn(l, data)
}

func (a *App) log() *slog.Logger {
	if a.logger == nil {
		a.logger = log.For(nil, log.ComponentCLI)
	}
	return a.logger
}

// fail reports err on the error stream.
func (a *App) fail(err error) subcommands.ExitStatus {
	w := a.Err
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintln(w, "Error:", err)
	return subcommands.ExitFailure
}

func (a *App) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}
