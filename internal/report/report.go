// Package report summarises a ledger over a calendar month or year.
package report

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/alerts"
	"saldo/internal/core"
)

type Period string

const (
	Month Period = "month"
	Year  Period = "year"
)

// ComparisonMonths is how many months the expense comparison covers.
const ComparisonMonths = 6

var ErrInvalidPeriod = errors.New("invalid report period")

func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case Month, Year:
		return p, nil
	}
	return "", fmt.Errorf("%w %q: must be %q or %q", ErrInvalidPeriod, s, Month, Year)
}

type CategoryTotal struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Share    decimal.Decimal `json:"share"` // percent of period expenses
}

type MonthTotal struct {
	Month    string          `json:"month"` // YYYY-MM
	Expenses decimal.Decimal `json:"expenses"`
}

type Report struct {
	Period        Period              `json:"period"`
	Start         time.Time           `json:"start"`
	End           time.Time           `json:"end"` // exclusive
	Currency      string              `json:"currency"`
	Balance       decimal.Decimal     `json:"balance"`
	Version       int64               `json:"version"`
	Transactions  int                 `json:"transactions"`
	Income        decimal.Decimal     `json:"income"`
	Expenses      decimal.Decimal     `json:"expenses"`
	Net           decimal.Decimal     `json:"net"`
	Essential     decimal.Decimal     `json:"essential"`
	NonEssential  decimal.Decimal     `json:"nonEssential"`
	ByCategory    []CategoryTotal     `json:"byCategory"`
	LastSixMonths []MonthTotal        `json:"lastSixMonths"`
	Notifications []core.Notification `json:"notifications"`
}

// Bounds returns the half-open calendar range of period containing at, in
// at's location.
func Bounds(period Period, at time.Time) (time.Time, time.Time) {
	loc := at.Location()
	if period == Year {
		start := time.Date(at.Year(), time.January, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0)
	}
	start := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// Build computes the report for the period containing at. Expense totals are
// absolute values; notifications are evaluated as of at.
func Build(data core.AppData, period Period, at time.Time, currency string) Report {
	if currency == "" {
		currency = core.DefaultCurrency
	}
	start, end := Bounds(period, at)
	r := Report{
		Period:        period,
		Start:         start,
		End:           end,
		Currency:      currency,
		Balance:       data.Balance,
		Version:       data.Version,
		ByCategory:    []CategoryTotal{},
		Notifications: alerts.EvaluateIn(data, at, currency),
	}

	byCategory := map[string]decimal.Decimal{}
	for _, t := range data.Transactions {
		d := t.Date.In(start.Location())
		if d.Before(start) || !d.Before(end) {
			continue
		}
		r.Transactions++
		switch t.Type {
		case core.Income:
			r.Income = r.Income.Add(t.Amount.Abs())
		case core.Expense:
			amt := t.Amount.Abs()
			r.Expenses = r.Expenses.Add(amt)
			byCategory[t.Category] = byCategory[t.Category].Add(amt)
			if t.Essential() {
				r.Essential = r.Essential.Add(amt)
			} else {
				r.NonEssential = r.NonEssential.Add(amt)
			}
		}
	}
	r.Net = r.Income.Sub(r.Expenses)

	hundred := decimal.NewFromInt(100)
	for cat, amt := range byCategory {
		share := decimal.Zero
		if r.Expenses.IsPositive() {
			share = amt.Mul(hundred).DivRound(r.Expenses, 1)
		}
		r.ByCategory = append(r.ByCategory, CategoryTotal{Category: cat, Amount: amt, Share: share})
	}
	slices.SortFunc(r.ByCategory, func(a, b CategoryTotal) int {
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})

	r.LastSixMonths = lastMonths(data.Transactions, at, ComparisonMonths)
	return r
}

// lastMonths returns expense totals for the n months ending with at's month,
// oldest first.
func lastMonths(txs []core.Transaction, at time.Time, n int) []MonthTotal {
	first := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, at.Location()).AddDate(0, -(n - 1), 0)
	out := make([]MonthTotal, n)
	for i := range out {
		out[i] = MonthTotal{Month: first.AddDate(0, i, 0).Format("2006-01")}
	}
	for _, t := range txs {
		if t.Type != core.Expense {
			continue
		}
		d := t.Date.In(at.Location())
		i := (d.Year()-first.Year())*12 + int(d.Month()) - int(first.Month())
		if i < 0 || i >= n {
			continue
		}
		out[i].Expenses = out[i].Expenses.Add(t.Amount.Abs())
	}
	return out
}

// Filename names the downloadable artifact, e.g. report-2025-04.xlsx.
func Filename(r Report) string {
	if r.Period == Year {
		return r.Start.Format("report-2006.xlsx")
	}
	return r.Start.Format("report-2006-01.xlsx")
}
