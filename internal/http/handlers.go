package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/ledger"
	"saldo/internal/log"
	"saldo/internal/mirror"
	"saldo/internal/rates"
	"saldo/internal/report"
)

// transactionRequest accepts amounts as JSON numbers or strings ("12,50").
type transactionRequest struct {
	Date        string               `json:"date"`
	Amount      json.RawMessage      `json:"amount"`
	Category    string               `json:"category"`
	Description string               `json:"description"`
	Type        core.TransactionType `json:"type"`
	IsEssential *bool                `json:"isEssential"`
}

func (req transactionRequest) input(defaultDate time.Time) (core.TransactionInput, error) {
	in := core.TransactionInput{
		Date:        defaultDate,
		Category:    sanitizeInput(req.Category),
		Description: sanitizeInput(req.Description),
		Type:        core.TransactionType(strings.ToLower(strings.TrimSpace(string(req.Type)))),
		IsEssential: req.IsEssential,
	}
	if d := strings.TrimSpace(req.Date); d != "" {
		t, err := mirror.ParseDate(d)
		if err != nil {
			return in, fmt.Errorf("%w: %q", core.ErrInvalidDate, d)
		}
		in.Date = t
	}
	amount, err := core.ParseAmount(strings.Trim(string(req.Amount), `"`))
	if err != nil {
		return in, err
	}
	in.Amount = amount
	return in, nil
}

type summary struct {
	Balance          decimal.Decimal     `json:"balance"`
	FormattedBalance string              `json:"formattedBalance"`
	Currency         string              `json:"currency"`
	Version          int64               `json:"version"`
	Notifications    []core.Notification `json:"notifications"`
	Severity         core.Severity       `json:"severity"`
}

type ledgerResponse struct {
	summary
	Transactions  []core.Transaction `json:"transactions"`
	AlertSettings core.AlertSettings `json:"alertSettings"`
}

type mutationResponse struct {
	summary
	Transaction *core.Transaction `json:"transaction,omitempty"`
}

func (s *Server) summarize(data core.AppData) summary {
	ns := s.ledger.EvaluateAlerts(data)
	return summary{
		Balance:          data.Balance,
		FormattedBalance: core.FormatMoney(data.Balance, s.currency),
		Currency:         s.currency,
		Version:          data.Version,
		Notifications:    ns,
		Severity:         core.HighestSeverity(ns),
	}
}

// current returns the committed view, loading it on first use.
func (s *Server) current(ctx context.Context) (core.AppData, error) {
	if d, ok := s.ledger.Snapshot(); ok {
		return d, nil
	}
	return s.ledger.Load(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{}

	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			checks["store"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}
	if _, err := s.current(ctx); err != nil {
		checks["ledger"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["ledger"] = "ok"
	}
	checks["rate_limiter"] = map[string]any{"active_clients": s.limiter.activeClients()}
	checks["security"] = map[string]any{"suspicious_requests": s.suspicious.Load()}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	data, err := s.current(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ledgerResponse{
		summary:       s.summarize(data),
		Transactions:  data.Transactions,
		AlertSettings: data.AlertSettings,
	})
}

// handleListTransactions supports optional type and category filters.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	data, err := s.current(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	typ := core.TransactionType(strings.ToLower(q.Get("type")))
	category := q.Get("category")

	out := make([]core.Transaction, 0, len(data.Transactions))
	for _, t := range data.Transactions {
		if typ != "" && t.Type != typ {
			continue
		}
		if category != "" && !strings.EqualFold(t.Category, category) {
			continue
		}
		out = append(out, t)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.input(s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := s.ledger.AddTransaction(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t := data.Transactions[len(data.Transactions)-1]
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction added",
		log.NewFields().WithOperation(log.OpAdd).WithTransaction(t.ID, t.Category, t.Amount.String()).ToSlice()...)
	w.Header().Set("Location", "/api/transactions/"+t.ID)
	writeJSON(w, http.StatusCreated, mutationResponse{summary: s.summarize(data), Transaction: &t})
}

func (s *Server) handleEditTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.input(time.Time{})
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := s.ledger.EditTransaction(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t := data.Transactions[data.IndexOf(id)]
	writeJSON(w, http.StatusOK, mutationResponse{summary: s.summarize(data), Transaction: &t})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	data, err := s.ledger.DeleteTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{summary: s.summarize(data)})
}

func (s *Server) handleGetAlertSettings(w http.ResponseWriter, r *http.Request) {
	data, err := s.current(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data.AlertSettings)
}

func (s *Server) handleSaveAlertSettings(w http.ResponseWriter, r *http.Request) {
	var settings core.AlertSettings
	if err := decodeJSON(w, r, &settings); err != nil {
		writeError(w, r, err)
		return
	}
	for i := range settings.CategoryAlerts {
		settings.CategoryAlerts[i].Category = sanitizeInput(settings.CategoryAlerts[i].Category)
	}
	data, err := s.ledger.SaveAlertSettings(r.Context(), settings)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ledgerResponse{
		summary:       s.summarize(data),
		Transactions:  data.Transactions,
		AlertSettings: data.AlertSettings,
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	data, err := s.current(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum := s.summarize(data)
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": sum.Notifications,
		"severity":      sum.Severity,
	})
}

func (s *Server) buildReport(r *http.Request) (report.Report, error) {
	period, err := report.ParsePeriod(r.PathValue("period"))
	if err != nil {
		return report.Report{}, err
	}
	at := s.now()
	if v := strings.TrimSpace(r.URL.Query().Get("date")); v != "" {
		at, err = time.ParseInLocation("2006-01-02", v, at.Location())
		if err != nil {
			return report.Report{}, fmt.Errorf("%w: date must be YYYY-MM-DD", errBadRequest)
		}
	}
	data, err := s.current(r.Context())
	if err != nil {
		return report.Report{}, err
	}
	return report.Build(data, period, at, s.currency), nil
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.buildReport(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleReportExport refreshes the mirror and downloads the report workbook.
func (s *Server) handleReportExport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.buildReport(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.ExportMirror(r.Context()); err != nil && !errors.Is(err, ledger.ErrNoMirror) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Mirror export before report failed",
			log.FieldOperation, log.OpExport, log.FieldError, err)
	}

	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, rep); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(rep)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	if s.rates == nil {
		writeError(w, r, fmt.Errorf("%w: not configured", rates.ErrUnavailable))
		return
	}
	pairs, err := s.rates.Pairs(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pairs": pairs})
}
