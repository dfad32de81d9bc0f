package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"saldo/internal/core"
)

const (
	sheetSummary    = "Summary"
	sheetCategories = "Categories"
	sheetMonths     = "Months"
)

// WriteXLSX renders r as a workbook with summary, category and monthly sheets.
func WriteXLSX(w io.Writer, r Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{sheetCategories, sheetMonths} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	summary := [][]any{
		{"period", string(r.Period)},
		{"start", r.Start.Format("2006-01-02")},
		{"end", r.End.AddDate(0, 0, -1).Format("2006-01-02")},
		{"currency", r.Currency},
		{"balance", r.Balance.InexactFloat64()},
		{"version", r.Version},
		{"transactions", r.Transactions},
		{"income", r.Income.InexactFloat64()},
		{"expenses", r.Expenses.InexactFloat64()},
		{"net", r.Net.InexactFloat64()},
		{"essential", r.Essential.InexactFloat64()},
		{"non_essential", r.NonEssential.InexactFloat64()},
	}
	for _, n := range r.Notifications {
		summary = append(summary, []any{"alert_" + n.Severity.String(), n.Message})
	}
	if err := writeRows(f, sheetSummary, summary); err != nil {
		return err
	}

	cats := [][]any{{"category", "amount", "share_pct"}}
	for _, c := range r.ByCategory {
		cats = append(cats, []any{c.Category, c.Amount.InexactFloat64(), c.Share.InexactFloat64()})
	}
	if err := writeRows(f, sheetCategories, cats); err != nil {
		return err
	}

	months := [][]any{{"month", "expenses", "formatted"}}
	for _, m := range r.LastSixMonths {
		months = append(months, []any{m.Month, m.Expenses.InexactFloat64(), core.FormatMoney(m.Expenses, r.Currency)})
	}
	if err := writeRows(f, sheetMonths, months); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
