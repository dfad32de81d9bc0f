package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

type (
	TransactionType string

	Transaction struct {
		ID          string          `json:"id"`
		Date        time.Time       `json:"date"`
		Amount      decimal.Decimal `json:"amount"` // signed: expenses negative, income positive
		Category    string          `json:"category"`
		Description string          `json:"description"`
		Type        TransactionType `json:"type"`
		IsEssential *bool           `json:"isEssential,omitempty"`
	}

	// TransactionInput is what collaborators submit to create or edit a transaction.
	// Amount is unsigned; the sign is derived from Type.
	TransactionInput struct {
		Date        time.Time       `json:"date"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category"`
		Description string          `json:"description"`
		Type        TransactionType `json:"type"`
		IsEssential *bool           `json:"isEssential,omitempty"`
	}

	BalanceAlerts struct {
		Yellow decimal.Decimal `json:"yellow"`
		Orange decimal.Decimal `json:"orange"`
		Red    decimal.Decimal `json:"red"`
	}

	CategoryAlert struct {
		Category string          `json:"category"`
		Limit    decimal.Decimal `json:"limit"`
	}

	AlertSettings struct {
		BalanceAlerts  BalanceAlerts   `json:"balanceAlerts"`
		CategoryAlerts []CategoryAlert `json:"categoryAlerts"`
	}

	// AppData is the single unit of persistence. Every backend reads and writes it whole.
	AppData struct {
		Balance       decimal.Decimal `json:"balance"`
		Transactions  []Transaction   `json:"transactions"`
		AlertSettings AlertSettings   `json:"alertSettings"`
		Version       int64           `json:"version"`
	}
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrEmptyCategory      = errors.New("empty category")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrInvalidThreshold   = errors.New("invalid alert threshold")
	ErrTypeChange         = errors.New("changing a transaction type is not supported")
)

const maxDescriptionLen = 200

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Signed applies the sign convention for t to an unsigned amount.
func (t TransactionType) Signed(amount decimal.Decimal) decimal.Decimal {
	if t == Expense {
		return amount.Abs().Neg()
	}
	return amount.Abs()
}

func (in TransactionInput) Validate() error {
	if in.Date.IsZero() {
		return ErrInvalidDate
	}
	if !in.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, in.Type)
	}
	if strings.TrimSpace(in.Category) == "" {
		return ErrEmptyCategory
	}
	if len(in.Description) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	return nil
}

// Essential reports the IsEssential flag, treating an unset flag as false.
func (t Transaction) Essential() bool {
	return t.IsEssential != nil && *t.IsEssential
}

// SignConsistent reports whether the stored amount sign matches the transaction type.
func (t Transaction) SignConsistent() bool {
	switch t.Type {
	case Expense:
		return t.Amount.IsNegative()
	case Income:
		return t.Amount.IsPositive()
	}
	return false
}

func (s AlertSettings) Validate() error {
	b := s.BalanceAlerts
	if b.Red.GreaterThan(b.Orange) || b.Orange.GreaterThan(b.Yellow) {
		return fmt.Errorf("%w: expected red <= orange <= yellow, got red=%s orange=%s yellow=%s",
			ErrInvalidThreshold, b.Red, b.Orange, b.Yellow)
	}
	for _, a := range s.CategoryAlerts {
		if strings.TrimSpace(a.Category) == "" {
			return fmt.Errorf("%w: category alert without category", ErrInvalidThreshold)
		}
		if !a.Limit.IsPositive() {
			return fmt.Errorf("%w: limit for %q must be positive", ErrInvalidThreshold, a.Category)
		}
	}
	return nil
}

// DefaultAlertSettings are the thresholds a fresh ledger starts with.
func DefaultAlertSettings() AlertSettings {
	return AlertSettings{
		BalanceAlerts: BalanceAlerts{
			Yellow: decimal.NewFromInt(500),
			Orange: decimal.NewFromInt(200),
			Red:    decimal.NewFromInt(100),
		},
		CategoryAlerts: []CategoryAlert{},
	}
}

// NewAppData returns the first-run ledger with the given opening balance.
func NewAppData(balance decimal.Decimal) AppData {
	return AppData{
		Balance:       balance,
		Transactions:  []Transaction{},
		AlertSettings: DefaultAlertSettings(),
	}
}

// Clone returns a deep copy so a snapshot can be mutated without touching the original.
func (d AppData) Clone() AppData {
	out := d
	out.Transactions = make([]Transaction, len(d.Transactions))
	for i, t := range d.Transactions {
		if t.IsEssential != nil {
			v := *t.IsEssential
			t.IsEssential = &v
		}
		out.Transactions[i] = t
	}
	out.AlertSettings.CategoryAlerts = append([]CategoryAlert{}, d.AlertSettings.CategoryAlerts...)
	return out
}

// IndexOf returns the position of the transaction with the given id, or -1.
func (d AppData) IndexOf(id string) int {
	for i, t := range d.Transactions {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Bool returns a pointer to v, handy for the optional IsEssential flag.
func Bool(v bool) *bool {
	return &v
}
