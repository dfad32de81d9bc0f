// Package alerts derives notifications from the ledger: one balance tier and
// any category whose spending this month reached its limit.
package alerts

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// Notification IDs for the balance tiers.
const (
	IDBalanceRed    = "balance-red"
	IDBalanceOrange = "balance-orange"
	IDBalanceYellow = "balance-yellow"
	categoryPrefix  = "category-"
)

// Evaluate returns the notifications for data as of now, formatted in the default currency.
func Evaluate(data core.AppData, now time.Time) []core.Notification {
	return EvaluateIn(data, now, core.DefaultCurrency)
}

// EvaluateIn is Evaluate with amounts formatted in currency.
func EvaluateIn(data core.AppData, now time.Time, currency string) []core.Notification {
	out := make([]core.Notification, 0, 1+len(data.AlertSettings.CategoryAlerts))
	if n, ok := balanceTier(data.Balance, data.AlertSettings.BalanceAlerts, currency); ok {
		out = append(out, n)
	}

	if len(data.AlertSettings.CategoryAlerts) == 0 {
		return out
	}
	spent := MonthlyExpenses(data.Transactions, now)
	for _, a := range data.AlertSettings.CategoryAlerts {
		sum, ok := spent[a.Category]
		if !ok || sum.LessThan(a.Limit) {
			continue
		}
		out = append(out, core.Notification{
			ID: categoryPrefix + a.Category,
			Message: fmt.Sprintf("Monthly limit reached for %s (%s / %s)",
				a.Category, core.FormatMoney(sum, currency), core.FormatMoney(a.Limit, currency)),
			Severity: core.SeverityInfo,
		})
	}
	return out
}

// Red takes precedence over orange, orange over yellow.
func balanceTier(balance decimal.Decimal, t core.BalanceAlerts, currency string) (core.Notification, bool) {
	switch {
	case balance.LessThanOrEqual(t.Red):
		return core.Notification{
			ID:       IDBalanceRed,
			Message:  "Critical balance: at or below " + core.FormatMoney(t.Red, currency),
			Severity: core.SeverityRed,
		}, true
	case balance.LessThanOrEqual(t.Orange):
		return core.Notification{
			ID:       IDBalanceOrange,
			Message:  "Low balance: at or below " + core.FormatMoney(t.Orange, currency),
			Severity: core.SeverityOrange,
		}, true
	case balance.LessThanOrEqual(t.Yellow):
		return core.Notification{
			ID:       IDBalanceYellow,
			Message:  "Balance approaching limit: at or below " + core.FormatMoney(t.Yellow, currency),
			Severity: core.SeverityYellow,
		}, true
	}
	return core.Notification{}, false
}

// MonthlyExpenses sums |amount| of expenses per category for the calendar
// month containing now, judged in now's location.
func MonthlyExpenses(txs []core.Transaction, now time.Time) map[string]decimal.Decimal {
	y, m, _ := now.Date()
	out := map[string]decimal.Decimal{}
	for _, t := range txs {
		if t.Type != core.Expense {
			continue
		}
		ty, tm, _ := t.Date.In(now.Location()).Date()
		if ty != y || tm != m {
			continue
		}
		out[t.Category] = out[t.Category].Add(t.Amount.Abs())
	}
	return out
}
