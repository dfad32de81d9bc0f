package xlsx

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"saldo/internal/core"
	"saldo/internal/mirror"
)

func ledger() core.AppData {
	d := core.NewAppData(decimal.RequireFromString("150"))
	d.Version = 3
	d.Transactions = []core.Transaction{
		{
			ID:          "t1",
			Date:        time.Date(2025, 4, 30, 22, 15, 0, 0, time.UTC),
			Amount:      decimal.RequireFromString("-850"),
			Category:    "Rent",
			Description: "april",
			Type:        core.Expense,
			IsEssential: core.Bool(false),
		},
		{
			ID:       "t2",
			Date:     time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC),
			Amount:   decimal.RequireFromString("12.34"),
			Category: "Gift",
			Type:     core.Income,
		},
	}
	d.AlertSettings.CategoryAlerts = []core.CategoryAlert{{Category: "Rent", Limit: decimal.NewFromInt(900)}}
	return d
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "financial_data.xlsx")
	m := New(path, nil)

	if err := m.Export(ctx, ledger()); err != nil {
		t.Fatalf("Export: %v", err)
	}
	got, err := m.Import(ctx)
	if err != nil || got == nil {
		t.Fatalf("Import: %v %v", got, err)
	}
	if !got.Balance.Equal(decimal.NewFromInt(150)) || got.Version != 3 {
		t.Fatalf("balance/version: %s %d", got.Balance, got.Version)
	}
	if len(got.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(got.Transactions))
	}
	first := got.Transactions[0]
	if !first.Date.Equal(time.Date(2025, 4, 30, 22, 15, 0, 0, time.UTC)) {
		t.Errorf("date: %s", first.Date)
	}
	if first.IsEssential == nil || *first.IsEssential {
		t.Errorf("explicit false essential flag lost: %v", first.IsEssential)
	}
	if got.Transactions[1].IsEssential != nil {
		t.Errorf("unset essential flag should stay unset")
	}
	if !got.Transactions[1].Amount.Equal(decimal.RequireFromString("12.34")) {
		t.Errorf("amount: %s", got.Transactions[1].Amount)
	}
	if len(got.AlertSettings.CategoryAlerts) != 1 || !got.AlertSettings.CategoryAlerts[0].Limit.Equal(decimal.NewFromInt(900)) {
		t.Errorf("category alerts: %+v", got.AlertSettings.CategoryAlerts)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestImportAbsentFile(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "missing.xlsx"), nil)
	got, err := m.Import(context.Background())
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil got %v %v", got, err)
	}
}

func TestImportGarbageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "financial_data.xlsx")
	if err := os.WriteFile(path, []byte("not a workbook"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := New(path, nil).Import(context.Background())
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil got %v %v", got, err)
	}
}

func TestImportMissingSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "financial_data.xlsx")
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), mirror.SheetBalance); err != nil {
		t.Fatal(err)
	}
	_ = f.SetSheetRow(mirror.SheetBalance, "A1", &[]any{"balance"})
	_ = f.SetSheetRow(mirror.SheetBalance, "A2", &[]any{300})
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	f.Close()

	got, err := New(path, nil).Import(context.Background())
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil got %v %v", got, err)
	}
}

func TestImportNumericSerialDates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "financial_data.xlsx")
	f := excelize.NewFile()
	_ = f.SetSheetName(f.GetSheetName(0), mirror.SheetBalance)
	_ = f.SetSheetRow(mirror.SheetBalance, "A1", &[]any{"balance"})
	_ = f.SetSheetRow(mirror.SheetBalance, "A2", &[]any{300})
	_, _ = f.NewSheet(mirror.SheetTransactions)
	_ = f.SetSheetRow(mirror.SheetTransactions, "A1", &[]any{"id", "date", "amount", "category", "description", "type", "is_essential"})
	_ = f.SetSheetRow(mirror.SheetTransactions, "A2", &[]any{"x", 45749, -20, "Food", "", "expense", true})
	_, _ = f.NewSheet(mirror.SheetAlertSettings)
	_ = f.SetSheetRow(mirror.SheetAlertSettings, "A1", &[]any{"yellow", "orange", "red", "category_alerts"})
	_ = f.SetSheetRow(mirror.SheetAlertSettings, "A2", &[]any{500, 200, 100, "[]"})
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	f.Close()

	got, err := New(path, nil).Import(context.Background())
	if err != nil || got == nil {
		t.Fatalf("Import: %v %v", got, err)
	}
	tx := got.Transactions[0]
	if !tx.Date.Equal(time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("serial date: %s", tx.Date)
	}
	if !tx.Essential() {
		t.Errorf("essential flag not read from boolean cell")
	}
}
