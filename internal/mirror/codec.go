package mirror

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"saldo/internal/core"
)

// Section names, one sheet/tab each.
const (
	SheetBalance       = "Balance"
	SheetTransactions  = "Transactions"
	SheetAlertSettings = "AlertSettings"
)

// SectionNames lists the sections in file order.
var SectionNames = []string{SheetBalance, SheetTransactions, SheetAlertSettings}

var (
	balanceHeader      = []string{"balance", "version", "exported_at"}
	transactionsHeader = []string{"id", "date", "amount", "category", "description", "type", "is_essential"}
	settingsHeader     = []string{"yellow", "orange", "red", "category_alerts"}
)

// Section is one named table: a header row followed by data rows.
type Section struct {
	Name string
	Rows [][]any
}

// Encode flattens a ledger into its three sections. Dates are written as
// RFC 3339 strings and amounts as numbers.
func Encode(data core.AppData, exportedAt time.Time) ([]Section, error) {
	balance := Section{Name: SheetBalance, Rows: [][]any{
		headerRow(balanceHeader),
		{data.Balance.InexactFloat64(), data.Version, exportedAt.UTC().Format(time.RFC3339)},
	}}

	txs := Section{Name: SheetTransactions, Rows: [][]any{headerRow(transactionsHeader)}}
	for _, t := range data.Transactions {
		var essential any = ""
		if t.IsEssential != nil {
			essential = *t.IsEssential
		}
		txs.Rows = append(txs.Rows, []any{
			t.ID,
			t.Date.Format(time.RFC3339Nano),
			t.Amount.InexactFloat64(),
			t.Category,
			t.Description,
			string(t.Type),
			essential,
		})
	}

	alerts := data.AlertSettings.CategoryAlerts
	if alerts == nil {
		alerts = []core.CategoryAlert{}
	}
	embedded, err := json.Marshal(alerts)
	if err != nil {
		return nil, fmt.Errorf("encode category alerts: %w", err)
	}
	b := data.AlertSettings.BalanceAlerts
	settings := Section{Name: SheetAlertSettings, Rows: [][]any{
		headerRow(settingsHeader),
		{b.Yellow.InexactFloat64(), b.Orange.InexactFloat64(), b.Red.InexactFloat64(), string(embedded)},
	}}

	return []Section{balance, txs, settings}, nil
}

// Decode rebuilds a ledger from raw cell text keyed by section name. Any
// missing section, missing column, unparsable cell or repeated transaction id
// yields core.ErrImportMalformed.
func Decode(sections map[string][][]string) (*core.AppData, error) {
	for _, name := range SectionNames {
		if _, ok := sections[name]; !ok {
			return nil, fmt.Errorf("%w: missing section %q", core.ErrImportMalformed, name)
		}
	}

	data := core.AppData{Transactions: []core.Transaction{}}

	bal, err := table(sections[SheetBalance], SheetBalance, "balance")
	if err != nil {
		return nil, err
	}
	if len(bal.rows) == 0 {
		return nil, fmt.Errorf("%w: %s has no data row", core.ErrImportMalformed, SheetBalance)
	}
	if data.Balance, err = parseDecimal(bal.get(bal.rows[0], "balance")); err != nil {
		return nil, fmt.Errorf("%w: balance: %w", core.ErrImportMalformed, err)
	}
	if v := bal.get(bal.rows[0], "version"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: version %q", core.ErrImportMalformed, v)
		}
		data.Version = int64(f)
	}

	txs, err := table(sections[SheetTransactions], SheetTransactions, "id", "date", "amount", "category", "type")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(txs.rows))
	for i, row := range txs.rows {
		t, err := decodeTransaction(txs, row)
		if err != nil {
			return nil, fmt.Errorf("%w: transaction row %d: %w", core.ErrImportMalformed, i+2, err)
		}
		if _, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate transaction id %q", core.ErrImportMalformed, t.ID)
		}
		seen[t.ID] = struct{}{}
		data.Transactions = append(data.Transactions, t)
	}

	st, err := table(sections[SheetAlertSettings], SheetAlertSettings, "yellow", "orange", "red")
	if err != nil {
		return nil, err
	}
	if len(st.rows) == 0 {
		return nil, fmt.Errorf("%w: %s has no data row", core.ErrImportMalformed, SheetAlertSettings)
	}
	row := st.rows[0]
	b := &data.AlertSettings.BalanceAlerts
	for _, f := range []struct {
		col string
		dst *decimal.Decimal
	}{{"yellow", &b.Yellow}, {"orange", &b.Orange}, {"red", &b.Red}} {
		if *f.dst, err = parseDecimal(st.get(row, f.col)); err != nil {
			return nil, fmt.Errorf("%w: %s threshold: %w", core.ErrImportMalformed, f.col, err)
		}
	}
	data.AlertSettings.CategoryAlerts = []core.CategoryAlert{}
	if raw := st.get(row, "category_alerts"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &data.AlertSettings.CategoryAlerts); err != nil {
			return nil, fmt.Errorf("%w: category alerts: %w", core.ErrImportMalformed, err)
		}
	}

	return &data, nil
}

func decodeTransaction(tb *tableView, row []string) (core.Transaction, error) {
	typ := core.TransactionType(strings.ToLower(tb.get(row, "type")))
	if !typ.Valid() {
		return core.Transaction{}, fmt.Errorf("type %q", tb.get(row, "type"))
	}
	date, err := ParseDate(tb.get(row, "date"))
	if err != nil {
		return core.Transaction{}, err
	}
	amount, err := parseDecimal(tb.get(row, "amount"))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount: %w", err)
	}
	t := core.Transaction{
		ID:          tb.get(row, "id"),
		Date:        date,
		Amount:      typ.Signed(amount),
		Category:    tb.get(row, "category"),
		Description: tb.get(row, "description"),
		Type:        typ,
	}
	if t.ID == "" {
		return core.Transaction{}, fmt.Errorf("empty id")
	}
	if raw := tb.get(row, "is_essential"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("is_essential %q", raw)
		}
		t.IsEssential = &v
	}
	return t, nil
}

// ParseDate coerces a serialized date back to a timestamp. It accepts RFC 3339
// and plain date strings, spreadsheet serial day numbers, and epoch milliseconds.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparsable date %q", s)
	}
	// Serial day numbers stay far below this; larger values are epoch milliseconds.
	if f > 1e9 {
		return time.UnixMilli(int64(f)).UTC(), nil
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("serial date %q: %w", s, err)
	}
	return t, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty number")
	}
	return decimal.NewFromString(s)
}

func headerRow(cols []string) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = c
	}
	return out
}

// tableView indexes a section by its header row.
type tableView struct {
	cols map[string]int
	rows [][]string
}

func table(rows [][]string, name string, required ...string) (*tableView, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s has no header", core.ErrImportMalformed, name)
	}
	tv := &tableView{cols: map[string]int{}}
	for i, h := range rows[0] {
		tv.cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range required {
		if _, ok := tv.cols[c]; !ok {
			return nil, fmt.Errorf("%w: %s missing column %q", core.ErrImportMalformed, name, c)
		}
	}
	for _, r := range rows[1:] {
		if blank(r) {
			continue
		}
		tv.rows = append(tv.rows, r)
	}
	return tv, nil
}

func (tv *tableView) get(row []string, col string) string {
	i, ok := tv.cols[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ToStrings renders raw cell values (as returned by spreadsheet APIs) as text.
func ToStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch x := v.(type) {
		case float64:
			out[i] = strconv.FormatFloat(x, 'f', -1, 64)
		case nil:
			out[i] = ""
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}
