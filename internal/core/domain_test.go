package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestTransactionTypeSigned(t *testing.T) {
	cases := []struct {
		typ  TransactionType
		in   string
		want string
	}{
		{Expense, "850", "-850"},
		{Expense, "-12.5", "-12.5"},
		{Income, "300", "300"},
		{Income, "-300", "300"},
	}
	for _, tc := range cases {
		got := tc.typ.Signed(dec(tc.in))
		if !got.Equal(dec(tc.want)) {
			t.Fatalf("%s.Signed(%s) = %s, want %s", tc.typ, tc.in, got, tc.want)
		}
	}
}

func TestTransactionInputValidate(t *testing.T) {
	good := TransactionInput{
		Date:        time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Amount:      dec("10"),
		Category:    "Food",
		Description: "groceries",
		Type:        Expense,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*TransactionInput)
		want   error
	}{
		{"zero date", func(in *TransactionInput) { in.Date = time.Time{} }, ErrInvalidDate},
		{"zero amount", func(in *TransactionInput) { in.Amount = decimal.Zero }, ErrInvalidAmount},
		{"negative amount", func(in *TransactionInput) { in.Amount = dec("-1") }, ErrInvalidAmount},
		{"bad type", func(in *TransactionInput) { in.Type = "transfer" }, ErrInvalidType},
		{"empty category", func(in *TransactionInput) { in.Category = "  " }, ErrEmptyCategory},
		{"long description", func(in *TransactionInput) { in.Description = strings.Repeat("x", 201) }, ErrDescriptionTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := good
			tc.mutate(&in)
			if err := in.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSignConsistent(t *testing.T) {
	if !(Transaction{Type: Expense, Amount: dec("-1")}).SignConsistent() {
		t.Fatal("negative expense should be consistent")
	}
	if (Transaction{Type: Expense, Amount: dec("1")}).SignConsistent() {
		t.Fatal("positive expense should be inconsistent")
	}
	if !(Transaction{Type: Income, Amount: dec("1")}).SignConsistent() {
		t.Fatal("positive income should be consistent")
	}
}

func TestAlertSettingsValidate(t *testing.T) {
	if err := DefaultAlertSettings().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	bad := DefaultAlertSettings()
	bad.BalanceAlerts.Red = dec("300")
	if err := bad.Validate(); !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("expected ErrInvalidThreshold, got %v", err)
	}
	bad = DefaultAlertSettings()
	bad.CategoryAlerts = []CategoryAlert{{Category: "Food", Limit: decimal.Zero}}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("expected ErrInvalidThreshold for zero limit, got %v", err)
	}
}

func TestAppDataCloneIsDeep(t *testing.T) {
	orig := NewAppData(dec("1000"))
	orig.Transactions = append(orig.Transactions, Transaction{ID: "a", IsEssential: Bool(true)})
	orig.AlertSettings.CategoryAlerts = append(orig.AlertSettings.CategoryAlerts, CategoryAlert{Category: "Food", Limit: dec("10")})

	cp := orig.Clone()
	cp.Transactions[0].ID = "b"
	*cp.Transactions[0].IsEssential = false
	cp.AlertSettings.CategoryAlerts[0].Category = "Rent"

	if orig.Transactions[0].ID != "a" || !orig.Transactions[0].Essential() {
		t.Fatalf("clone shares transactions with original: %+v", orig.Transactions[0])
	}
	if orig.AlertSettings.CategoryAlerts[0].Category != "Food" {
		t.Fatalf("clone shares category alerts with original")
	}
	if orig.IndexOf("a") != 0 || orig.IndexOf("zzz") != -1 {
		t.Fatalf("unexpected IndexOf results")
	}
}
