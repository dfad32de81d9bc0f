// Package rates fetches illustrative exchange rates from an
// exchangerate-api compatible endpoint and keeps them for a TTL.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/cache"
	"saldo/internal/log"
)

var ErrUnavailable = errors.New("exchange rates unavailable")

// DefaultPairs are the quotes shown next to the ledger.
var DefaultPairs = [][2]string{{"BRL", "EUR"}, {"BRL", "USD"}, {"EUR", "USD"}}

type Rates struct {
	Base      string                     `json:"base"`
	Rates     map[string]decimal.Decimal `json:"rates"`
	FetchedAt time.Time                  `json:"fetchedAt"`
}

// Pair is the price of one unit of Base expressed in Quote.
type Pair struct {
	Name string          `json:"pair"`
	Rate decimal.Decimal `json:"rate"`
}

type Client struct {
	url    string
	http   *http.Client
	cache  *cache.LRUCache[Rates]
	now    func() time.Time
	logger *slog.Logger
}

func NewClient(url string, ttl time.Duration, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		url:    url,
		http:   httpClient,
		cache:  cache.NewLRUCache[Rates](4, ttl),
		now:    time.Now,
		logger: log.For(logger, log.ComponentRates),
	}
}

// Cache exposes the underlying cache so a cache.Manager can clean it.
func (c *Client) Cache() *cache.LRUCache[Rates] { return c.cache }

// Latest returns cached rates, fetching them when the cache is empty or stale.
func (c *Client) Latest(ctx context.Context) (Rates, error) {
	if r, ok := c.cache.Get(c.url); ok {
		return r, nil
	}
	r, err := c.fetch(ctx)
	if err != nil {
		return Rates{}, err
	}
	c.cache.Set(c.url, r)
	c.logger.DebugContext(ctx, "Exchange rates refreshed", "base", r.Base, "count", len(r.Rates))
	return r, nil
}

// Pairs returns the DefaultPairs quotes, rounded to four places.
func (c *Client) Pairs(ctx context.Context) ([]Pair, error) {
	r, err := c.Latest(ctx)
	if err != nil {
		return nil, err
	}
	return r.Pairs(DefaultPairs)
}

// Pairs computes base/quote as rate(base)/rate(quote) in r's base currency.
func (r Rates) Pairs(pairs [][2]string) ([]Pair, error) {
	out := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		a, okA := r.rate(p[0])
		b, okB := r.rate(p[1])
		if !okA || !okB || b.IsZero() {
			return nil, fmt.Errorf("%w: no quote for %s/%s", ErrUnavailable, p[0], p[1])
		}
		out = append(out, Pair{Name: p[0] + "/" + p[1], Rate: a.DivRound(b, 4)})
	}
	return out, nil
}

func (r Rates) rate(code string) (decimal.Decimal, bool) {
	if code == r.Base {
		return decimal.NewFromInt(1), true
	}
	v, ok := r.Rates[code]
	return v, ok
}

// apiResponse accepts both the v4 ("base") and v6 ("base_code") payloads.
type apiResponse struct {
	Result   string                     `json:"result"`
	Base     string                     `json:"base"`
	BaseCode string                     `json:"base_code"`
	Rates    map[string]decimal.Decimal `json:"rates"`
}

func (c *Client) fetch(ctx context.Context) (Rates, error) {
	if c.url == "" {
		return Rates{}, fmt.Errorf("%w: no rates URL configured", ErrUnavailable)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Rates{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Rates{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Rates{}, fmt.Errorf("%w: GET %s: %s", ErrUnavailable, req.URL.Host, resp.Status)
	}

	var body apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return Rates{}, fmt.Errorf("%w: decode: %w", ErrUnavailable, err)
	}
	if body.Result != "" && body.Result != "success" {
		return Rates{}, fmt.Errorf("%w: provider returned %q", ErrUnavailable, body.Result)
	}
	base := body.Base
	if base == "" {
		base = body.BaseCode
	}
	if base == "" || len(body.Rates) == 0 {
		return Rates{}, fmt.Errorf("%w: empty payload", ErrUnavailable)
	}
	return Rates{Base: base, Rates: body.Rates, FetchedAt: c.now().UTC()}, nil
}
