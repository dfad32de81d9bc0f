package rates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestClientPairsAndCaching(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"base":"EUR","date":"2025-04-02","rates":{"EUR":1,"USD":1.25,"BRL":6.25}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Minute, srv.Client(), nil)
	pairs, err := c.Pairs(context.Background())
	if err != nil {
		t.Fatalf("Pairs: %v", err)
	}
	want := map[string]string{"BRL/EUR": "6.25", "BRL/USD": "5", "EUR/USD": "0.8"}
	if len(pairs) != len(want) {
		t.Fatalf("expected %d pairs, got %+v", len(want), pairs)
	}
	for _, p := range pairs {
		if p.Rate.String() != want[p.Name] {
			t.Errorf("%s = %s, want %s", p.Name, p.Rate, want[p.Name])
		}
	}

	if _, err := c.Pairs(context.Background()); err != nil {
		t.Fatalf("second Pairs: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one upstream call within the TTL, got %d", hits.Load())
	}
}

func TestClientAcceptsV6Payload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"success","base_code":"USD","rates":{"USD":1,"EUR":0.8,"BRL":5}}`))
	}))
	defer srv.Close()

	r, err := NewClient(srv.URL, time.Minute, srv.Client(), nil).Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if r.Base != "USD" || r.Rates["BRL"].String() != "5" {
		t.Fatalf("unexpected rates: %+v", r)
	}
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"upstream error", http.StatusBadGateway, `{}`},
		{"bad json", http.StatusOK, `{`},
		{"provider failure", http.StatusOK, `{"result":"error","base_code":"EUR","rates":{"USD":1}}`},
		{"empty rates", http.StatusOK, `{"base":"EUR","rates":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Minute, srv.Client(), nil).Latest(context.Background())
			if !errors.Is(err, ErrUnavailable) {
				t.Fatalf("expected ErrUnavailable, got %v", err)
			}
		})
	}
}

func TestRatesPairsMissingQuote(t *testing.T) {
	r := Rates{Base: "EUR", Rates: map[string]decimal.Decimal{"USD": decimal.RequireFromString("1.1")}}
	if _, err := r.Pairs([][2]string{{"JPY", "EUR"}}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	pairs, err := r.Pairs([][2]string{{"EUR", "EUR"}})
	if err != nil || !pairs[0].Rate.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("identity pair: %+v %v", pairs, err)
	}
}
