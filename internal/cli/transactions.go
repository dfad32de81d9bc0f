package cli

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"

	"saldo/internal/core"
	"saldo/internal/mirror"
)

// txFlags are shared by add and edit.
type txFlags struct {
	date        string
	amount      string
	category    string
	description string
	typ         string
	essential   string
}

func (p *txFlags) register(f *flag.FlagSet, defaultType string) {
	f.StringVar(&p.date, "date", "", "Transaction date (YYYY-MM-DD). Defaults to today when adding.")
	f.StringVar(&p.amount, "amount", "", "Unsigned amount, e.g. 12.50 or 12,50.")
	f.StringVar(&p.category, "category", "", "Category name.")
	f.StringVar(&p.description, "description", "", "Free text, up to 200 characters.")
	f.StringVar(&p.typ, "type", defaultType, "Transaction type (income or expense).")
	f.StringVar(&p.essential, "essential", "", "Mark the transaction essential (true or false).")
}

// apply overlays the flags named in set onto in.
func (p *txFlags) apply(in *core.TransactionInput, set map[string]bool) error {
	if set["date"] {
		d, err := mirror.ParseDate(p.date)
		if err != nil {
			return fmt.Errorf("%w: %q", core.ErrInvalidDate, p.date)
		}
		in.Date = d
	}
	if set["amount"] {
		a, err := core.ParseAmount(p.amount)
		if err != nil {
			return fmt.Errorf("%w: %q", err, p.amount)
		}
		in.Amount = a
	}
	if set["category"] {
		in.Category = strings.TrimSpace(p.category)
	}
	if set["description"] {
		in.Description = p.description
	}
	if set["type"] {
		in.Type = core.TransactionType(strings.ToLower(strings.TrimSpace(p.typ)))
	}
	if set["essential"] {
		v, err := strconv.ParseBool(p.essential)
		if err != nil {
			return fmt.Errorf("invalid -essential value %q", p.essential)
		}
		in.IsEssential = core.Bool(v)
	}
	return nil
}

func visited(f *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	f.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return set
}

type addCmd struct {
	app *App
	txFlags
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record an income or an expense" }
func (*addCmd) Usage() string {
	return `saldoctl add -amount <amount> -category <name> [-type expense|income] [-date YYYY-MM-DD] [-description <text>] [-essential true|false]

  Appends a transaction and updates the balance.
`
}

func (p *addCmd) SetFlags(f *flag.FlagSet) { p.register(f, string(core.Expense)) }

func (p *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	set := visited(f)
	set["type"] = true
	in := core.TransactionInput{Date: p.app.now()}
	if err := p.apply(&in, set); err != nil {
		return p.app.fail(err)
	}

	err := p.app.withLedger(ctx, func(l Ledger, _ core.AppData) error {
		data, err := l.AddTransaction(ctx, in)
		if err != nil {
			return err
		}
		t := data.Transactions[len(data.Transactions)-1]
		fmt.Fprintf(p.app.Out, "Added %s %s %s\n", t.ID, t.Category, p.app.money(t.Amount))
		p.app.printBalance(data, l)
		return nil
	})
	if err != nil {
		return p.app.fail(err)
	}
	return subcommands.ExitSuccess
}

type editCmd struct {
	app *App
	txFlags
}

func (*editCmd) Name() string     { return "edit" }
func (*editCmd) Synopsis() string { return "change a recorded transaction" }
func (*editCmd) Usage() string {
	return `saldoctl edit [-amount <amount>] [-category <name>] [-date YYYY-MM-DD] [-description <text>] [-essential true|false] <id>

  Replaces the given fields of a transaction. Omitted fields keep their value.
  The transaction type cannot be changed.
`
}

func (p *editCmd) SetFlags(f *flag.FlagSet) { p.register(f, "") }

func (p *editCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(p.app.Err, "edit needs exactly one transaction id")
		return subcommands.ExitUsageError
	}
	id := f.Arg(0)
	set := visited(f)

	err := p.app.withLedger(ctx, func(l Ledger, data core.AppData) error {
		idx := data.IndexOf(id)
		if idx < 0 {
			return fmt.Errorf("%w: transaction %q", core.ErrNotFound, id)
		}
		old := data.Transactions[idx]
		in := core.TransactionInput{
			Date:        old.Date,
			Amount:      old.Amount.Abs(),
			Category:    old.Category,
			Description: old.Description,
			Type:        old.Type,
			IsEssential: old.IsEssential,
		}
		if err := p.apply(&in, set); err != nil {
			return err
		}
		data, err := l.EditTransaction(ctx, id, in)
		if err != nil {
			return err
		}
		t := data.Transactions[data.IndexOf(id)]
		fmt.Fprintf(p.app.Out, "Updated %s %s %s\n", t.ID, t.Category, p.app.money(t.Amount))
		p.app.printBalance(data, l)
		return nil
	})
	if err != nil {
		return p.app.fail(err)
	}
	return subcommands.ExitSuccess
}

type deleteCmd struct {
	app *App
}

func (*deleteCmd) Name() string     { return "delete" }
func (*deleteCmd) Synopsis() string { return "remove a transaction and reverse its effect" }
func (*deleteCmd) Usage() string {
	return `saldoctl delete <id>
`
}

func (*deleteCmd) SetFlags(*flag.FlagSet) {}

func (p *deleteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(p.app.Err, "delete needs exactly one transaction id")
		return subcommands.ExitUsageError
	}
	err := p.app.withLedger(ctx, func(l Ledger, _ core.AppData) error {
		data, err := l.DeleteTransaction(ctx, f.Arg(0))
		if err != nil {
			return err
		}
		fmt.Fprintf(p.app.Out, "Deleted %s\n", f.Arg(0))
		p.app.printBalance(data, l)
		return nil
	})
	if err != nil {
		return p.app.fail(err)
	}
	return subcommands.ExitSuccess
}

type listCmd struct {
	app      *App
	typ      string
	category string
	tail     int
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list transactions in insertion order" }
func (*listCmd) Usage() string {
	return `saldoctl list [-type income|expense] [-category <name>] [-tail <n>]
`
}

func (p *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.typ, "type", "", "Only show this transaction type.")
	f.StringVar(&p.category, "category", "", "Only show this category (case insensitive).")
	f.IntVar(&p.tail, "tail", 0, "Show only the last N transactions.")
}

func (p *listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	err := p.app.withLedger(ctx, func(l Ledger, data core.AppData) error {
		var txs []core.Transaction
		for _, t := range data.Transactions {
			if p.typ != "" && !strings.EqualFold(string(t.Type), p.typ) {
				continue
			}
			if p.category != "" && !strings.EqualFold(t.Category, p.category) {
				continue
			}
			txs = append(txs, t)
		}
		if p.tail > 0 && len(txs) > p.tail {
			txs = txs[len(txs)-p.tail:]
		}

		w := tabwriter.NewWriter(p.app.Out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDATE\tTYPE\tCATEGORY\tAMOUNT\tESSENTIAL\tDESCRIPTION")
		for _, t := range txs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
				t.ID, t.Date.Format("2006-01-02"), t.Type, t.Category, p.app.money(t.Amount), t.Essential(), t.Description)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		p.app.printBalance(data, l)
		return nil
	})
	if err != nil {
		return p.app.fail(err)
	}
	return subcommands.ExitSuccess
}
