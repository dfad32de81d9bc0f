package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

func (a *App) money(d decimal.Decimal) string {
	return core.FormatMoney(d, a.Currency)
}

// printBalance writes the balance line followed by any alerts.
func (a *App) printBalance(data core.AppData, l Ledger) {
	ns := l.EvaluateAlerts(data)
	fmt.Fprintf(a.Out, "Balance: %s (version %d)\n", a.money(data.Balance), data.Version)
	for _, n := range ns {
		fmt.Fprintf(a.Out, "  [%s] %s\n", n.Severity, n.Message)
	}
}

type alertsCmd struct {
	app *App
}

func (*alertsCmd) Name() string     { return "alerts" }
func (*alertsCmd) Synopsis() string { return "show the current notifications" }
func (*alertsCmd) Usage() string {
	return `saldoctl alerts

  Evaluates the balance tiers and this month's category limits.
`
}

func (*alertsCmd) SetFlags(*flag.FlagSet) {}

func (p *alertsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	err := p.app.withLedger(ctx, func(l Ledger, data core.AppData) error {
		ns := l.EvaluateAlerts(data)
		fmt.Fprintf(p.app.Out, "Severity: %s\n", core.HighestSeverity(ns))
		if len(ns) == 0 {
			fmt.Fprintln(p.app.Out, "No notifications")
		}
		for _, n := range ns {
			fmt.Fprintf(p.app.Out, "[%s] %s\n", n.Severity, n.Message)
		}
		return nil
	})
	if err != nil {
		return p.app.fail(err)
	}
	return subcommands.ExitSuccess
}

// stringList collects a repeatable flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type settingsCmd struct {
	app    *App
	yellow string
	orange string
	red    string
	limits stringList
	remove stringList
}

func (*settingsCmd) Name() string     { return "settings" }
func (*settingsCmd) Synopsis() string { return "show or change alert thresholds" }
func (*settingsCmd) Usage() string {
	return `saldoctl settings [-yellow <amount>] [-orange <amount>] [-red <amount>] [-limit Category=Amount]... [-remove Category]...

  Without flags prints the thresholds. Thresholds must satisfy red <= orange <= yellow.
`
}

func (p *settingsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.yellow, "yellow", "", "Balance at or below which a yellow alert is raised.")
	f.StringVar(&p.orange, "orange", "", "Balance at or below which an orange alert is raised.")
	f.StringVar(&p.red, "red", "", "Balance at or below which a red alert is raised.")
	f.Var(&p.limits, "limit", "Monthly category limit as Category=Amount. Repeatable.")
	f.Var(&p.remove, "remove", "Drop the limit for a category. Repeatable.")
}

func (p *settingsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	set := visited(f)
	err := p.app.withLedger(ctx, func(l Ledger, data core.AppData) error {
		if len(set) == 0 {
			p.print(data.AlertSettings)
			return nil
		}
		settings, err := p.apply(data.AlertSettings, set)
		if err != nil {
			return err
		}
		data, err = l.SaveAlertSettings(ctx, settings)
		if err != nil {
			return err
		}
		p.print(data.AlertSettings)
		return nil
	})
	if err != nil {
		return p.app.fail(err)
	}
	return subcommands.ExitSuccess
}

// apply edits s in place; callers pass a copy.
func (p *settingsCmd) apply(s core.AlertSettings, set map[string]bool) (core.AlertSettings, error) {
	thresholds := []struct {
		name, raw string
		dst       *decimal.Decimal
	}{
		{"yellow", p.yellow, &s.BalanceAlerts.Yellow},
		{"orange", p.orange, &s.BalanceAlerts.Orange},
		{"red", p.red, &s.BalanceAlerts.Red},
	}
	for _, th := range thresholds {
		if !set[th.name] {
			continue
		}
		v, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(th.raw), ",", "."))
		if err != nil {
			return s, fmt.Errorf("%w: %s=%q", core.ErrInvalidThreshold, th.name, th.raw)
		}
		*th.dst = v
	}

	for _, category := range p.remove {
		s.CategoryAlerts = dropCategory(s.CategoryAlerts, strings.TrimSpace(category))
	}
	for _, pair := range p.limits {
		category, amount, ok := strings.Cut(pair, "=")
		if !ok {
			return s, fmt.Errorf("%w: limit %q must be Category=Amount", core.ErrInvalidThreshold, pair)
		}
		category = strings.TrimSpace(category)
		limit, err := core.ParseAmount(amount)
		if err != nil {
			return s, fmt.Errorf("%w: limit for %q", core.ErrInvalidThreshold, category)
		}
		s.CategoryAlerts = append(dropCategory(s.CategoryAlerts, category), core.CategoryAlert{Category: category, Limit: limit})
	}
	return s, nil
}

func dropCategory(alerts []core.CategoryAlert, category string) []core.CategoryAlert {
	out := alerts[:0]
	for _, a := range alerts {
		if a.Category != category {
			out = append(out, a)
		}
	}
	return out
}

func (p *settingsCmd) print(s core.AlertSettings) {
	b := s.BalanceAlerts
	fmt.Fprintf(p.app.Out, "Yellow: %s\nOrange: %s\nRed: %s\n", p.app.money(b.Yellow), p.app.money(b.Orange), p.app.money(b.Red))
	for _, a := range s.CategoryAlerts {
		fmt.Fprintf(p.app.Out, "Limit %s: %s\n", a.Category, p.app.money(a.Limit))
	}
}
