package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"

	"saldo/internal/core"
	"saldo/internal/ledger"
	"saldo/internal/report"
)

type exportCmd struct {
	app *App
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "rewrite the spreadsheet mirror from the ledger" }
func (*exportCmd) Usage() string {
	return `saldoctl export

  Writes the committed ledger to the configured mirror (MIRROR_BACKEND).
`
}

func (*exportCmd) SetFlags(*flag.FlagSet) {}

func (p *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	err := p.app.withLedger(ctx, func(l Ledger, data core.AppData) error {
		if err := l.ExportMirror(ctx); err != nil {
			if errors.Is(err, ledger.ErrNoMirror) {
				return fmt.Errorf("%w: set MIRROR_BACKEND to export", err)
			}
			return err
		}
		fmt.Fprintf(p.app.Out, "Mirror updated (version %d, %d transactions)\n", data.Version, len(data.Transactions))
		return nil
	})
	if err != nil {
		return p.app.fail(err)
	}
	return subcommands.ExitSuccess
}

type reportCmd struct {
	app    *App
	period string
	date   string
	output string
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "summarize a month or a year" }
func (*reportCmd) Usage() string {
	return `saldoctl report [-period month|year] [-date YYYY-MM-DD] [-o <file.xlsx>]

  Prints totals, the category split and the last six months of expenses.
  With -o the report is also written as a workbook.
`
}

func (p *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.period, "period", string(report.Month), "Report period (month or year).")
	f.StringVar(&p.date, "date", "", "Any day inside the period. Defaults to today.")
	f.StringVar(&p.output, "o", "", "Also write the report workbook to this path.")
}

func (p *reportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	period, err := report.ParsePeriod(p.period)
	if err != nil {
		fmt.Fprintln(p.app.Err, err)
		return subcommands.ExitUsageError
	}
	at := p.app.now()
	if p.date != "" {
		if at, err = time.ParseInLocation("2006-01-02", p.date, at.Location()); err != nil {
			fmt.Fprintf(p.app.Err, "invalid -date %q: want YYYY-MM-DD\n", p.date)
			return subcommands.ExitUsageError
		}
	}

	err = p.app.withLedger(ctx, func(_ Ledger, data core.AppData) error {
		rep := report.Build(data, period, at, p.app.Currency)
		p.print(rep)
		if p.output == "" {
			return nil
		}
		return p.write(rep)
	})
	if err != nil {
		return p.app.fail(err)
	}
	return subcommands.ExitSuccess
}

func (p *reportCmd) write(rep report.Report) (err error) {
	f, err := os.Create(p.output)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := report.WriteXLSX(f, rep); err != nil {
		return err
	}
	fmt.Fprintf(p.app.Out, "Report written to %s\n", p.output)
	return nil
}

func (p *reportCmd) print(r report.Report) {
	out, m := p.app.Out, p.app.money
	fmt.Fprintf(out, "Report %s %s .. %s\n", r.Period, r.Start.Format("2006-01-02"), r.End.AddDate(0, 0, -1).Format("2006-01-02"))
	fmt.Fprintf(out, "Balance:       %s\n", m(r.Balance))
	fmt.Fprintf(out, "Income:        %s\n", m(r.Income))
	fmt.Fprintf(out, "Expenses:      %s\n", m(r.Expenses))
	fmt.Fprintf(out, "Net:           %s\n", m(r.Net))
	fmt.Fprintf(out, "Essential:     %s\n", m(r.Essential))
	fmt.Fprintf(out, "Non-essential: %s\n", m(r.NonEssential))
	if len(r.ByCategory) > 0 {
		fmt.Fprintln(out, "By category:")
		for _, c := range r.ByCategory {
			fmt.Fprintf(out, "  %-16s %12s %5s%%\n", c.Category, m(c.Amount), c.Share.StringFixed(1))
		}
	}
	fmt.Fprintln(out, "Last six months:")
	for _, mt := range r.LastSixMonths {
		fmt.Fprintf(out, "  %s %12s\n", mt.Month, m(mt.Expenses))
	}
	for _, n := range r.Notifications {
		fmt.Fprintf(out, "[%s] %s\n", n.Severity, n.Message)
	}
}
