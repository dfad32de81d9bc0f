package alerts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"saldo/internal/core"
	"saldo/internal/log"
)

// DefaultInterval is how often the Monitor re-evaluates without a change signal.
const DefaultInterval = 60 * time.Second

// Snapshotter exposes the committed ledger view.
type Snapshotter interface {
	Snapshot() (core.AppData, bool)
}

// Monitor re-evaluates alerts on a ticker and whenever the change signal fires.
type Monitor struct {
	src      Snapshotter
	interval time.Duration
	currency string
	onUpdate func([]core.Notification)
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.RWMutex
	current []core.Notification
}

// NewMonitor builds a Monitor. A non-positive interval means DefaultInterval;
// onUpdate may be nil.
func NewMonitor(src Snapshotter, interval time.Duration, currency string, onUpdate func([]core.Notification), logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if currency == "" {
		currency = core.DefaultCurrency
	}
	return &Monitor{
		src:      src,
		interval: interval,
		currency: currency,
		onUpdate: onUpdate,
		now:      time.Now,
		logger:   log.For(logger, log.ComponentAlerts),
	}
}

// Run evaluates immediately, then on every tick or signal until ctx is done.
// A closed signal channel only stops signal-driven refreshes.
func (m *Monitor) Run(ctx context.Context, signal <-chan struct{}) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Refresh(ctx)
		case _, ok := <-signal:
			if !ok {
				signal = nil
				continue
			}
			m.Refresh(ctx)
		}
	}
}

// Refresh evaluates the current snapshot, stores and publishes the result.
// With no loaded ledger it keeps the previous list.
func (m *Monitor) Refresh(ctx context.Context) []core.Notification {
	data, ok := m.src.Snapshot()
	if !ok {
		m.logger.DebugContext(ctx, "Ledger not loaded, skipping alert evaluation")
		return m.Current()
	}
	ns := EvaluateIn(data, m.now(), m.currency)

	m.mu.Lock()
	m.current = ns
	m.mu.Unlock()

	m.logger.DebugContext(ctx, "Alerts evaluated",
		log.FieldNotifications, len(ns),
		log.FieldSeverity, core.HighestSeverity(ns).String())
	if m.onUpdate != nil {
		m.onUpdate(append([]core.Notification(nil), ns...))
	}
	return ns
}

// Current returns a copy of the latest notification list.
func (m *Monitor) Current() []core.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]core.Notification{}, m.current...)
}

// Severity is the bell colour for the latest evaluation.
func (m *Monitor) Severity() core.Severity {
	return core.HighestSeverity(m.Current())
}
