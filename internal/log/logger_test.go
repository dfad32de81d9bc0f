package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func jsonLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		out = append(out, rec)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, ComponentLedger)
	logger.Info("Ledger committed", FieldVersion, 3)
	logger.WithComponent(ComponentWorker).Warn("Mirror behind")

	recs := records(t, &buf)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0][FieldComponent] != ComponentLedger || recs[0][FieldVersion] != float64(3) {
		t.Errorf("first record: %v", recs[0])
	}
	if recs[1][FieldComponent] != ComponentWorker {
		t.Errorf("second record: %v", recs[1])
	}
}

func TestFor(t *testing.T) {
	var buf bytes.Buffer
	For(slog.New(slog.NewJSONHandler(&buf, nil)), ComponentRates).Info("refreshed")
	if rec := records(t, &buf)[0]; rec[FieldComponent] != ComponentRates {
		t.Errorf("record: %v", rec)
	}
	if For(nil, ComponentApp) == nil {
		t.Error("For(nil) must fall back to the default logger")
	}
}

func TestMiddlewareCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, ComponentHTTP)

	handler := Middleware(logger)(RequestIDMiddleware(func(r *http.Request) string {
		return r.Header.Get("X-Request-ID")
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "handled")
		NewStructuredLogger(FromContext(r.Context())).LogHTTPEnd(r.Context(), r, http.StatusNotFound, 4, "203.0.113.7")
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/ledger?x=1", nil)
	req.Header.Set("X-Request-ID", "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	recs := records(t, &buf)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	for _, rec := range recs {
		if rec[FieldRequestID] != "req-42" {
			t.Errorf("missing request id: %v", rec)
		}
	}
	end := recs[1]
	if end["level"] != "WARN" || end[FieldStatusCode] != float64(404) || end[FieldQuery] != "x=1" || end[FieldSuccess] != false {
		t.Errorf("completion record: %v", end)
	}
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	NewStructuredLogger(jsonLogger(&buf, ComponentHTTP)).LogError(context.Background(), "Request failed",
		errors.New("disk full"), ComponentStorage, OpCommit, LogFields{FieldVersion: 7})

	rec := records(t, &buf)[0]
	if rec["level"] != "ERROR" || rec[FieldError] != "disk full" || rec[FieldOperation] != OpCommit || rec[FieldComponent] != ComponentStorage {
		t.Errorf("record: %v", rec)
	}
}

func TestFromContextDefault(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext must never return nil")
	}
}

func TestFieldsSkipNilError(t *testing.T) {
	f := NewFields().WithError(nil).WithOperation(OpAdd)
	if _, ok := f[FieldError]; ok {
		t.Error("nil error must not be recorded")
	}
	if len(f.ToSlice()) != 2 {
		t.Errorf("ToSlice = %v", f.ToSlice())
	}
}
