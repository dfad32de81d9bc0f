// Package http exposes the ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/rates"
)

const headerRequestID = "X-Request-ID"

// Ledger is the subset of ledger.Service the API drives.
type Ledger interface {
	Load(ctx context.Context) (core.AppData, error)
	Snapshot() (core.AppData, bool)
	AddTransaction(ctx context.Context, in core.TransactionInput) (core.AppData, error)
	EditTransaction(ctx context.Context, id string, in core.TransactionInput) (core.AppData, error)
	DeleteTransaction(ctx context.Context, id string) (core.AppData, error)
	SaveAlertSettings(ctx context.Context, settings core.AlertSettings) (core.AppData, error)
	EvaluateAlerts(data core.AppData) []core.Notification
	ExportMirror(ctx context.Context) error
}

type RatesSource interface {
	Pairs(ctx context.Context) ([]rates.Pair, error)
}

type Options struct {
	Addr     string
	Ledger   Ledger
	Rates    RatesSource // optional
	Currency string
	// Ready is an extra readiness probe, e.g. a store ping.
	Ready func(ctx context.Context) error
	Now   func() time.Time
	// RateLimit caps mutating requests per client per minute; 0 means 60.
	RateLimit int
}

type Server struct {
	http.Server
	ledger    Ledger
	rates     RatesSource
	currency  string
	ready     func(ctx context.Context) error
	now       func() time.Time
	startedAt time.Time
	logger    *log.Logger
	limiter   *rateLimiter

	suspicious atomic.Int64

	stopCleanup  context.CancelFunc
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Currency == "" {
		opts.Currency = core.DefaultCurrency
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 60
	}

	s := &Server{
		ledger:    opts.Ledger,
		rates:     opts.Rates,
		currency:  opts.Currency,
		ready:     opts.Ready,
		now:       opts.Now,
		startedAt: opts.Now(),
		logger:    logger.WithComponent(log.ComponentHTTP),
		limiter:   newRateLimiter(opts.RateLimit, time.Minute),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/ledger", s.handleLedger)
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleAddTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleEditTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("GET /api/settings/alerts", s.handleGetAlertSettings)
	mux.HandleFunc("PUT /api/settings/alerts", s.handleSaveAlertSettings)
	mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	mux.HandleFunc("GET /api/reports/{period}", s.handleReport)
	mux.HandleFunc("GET /api/reports/{period}/export", s.handleReportExport)
	mux.HandleFunc("GET /api/rates", s.handleRates)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopCleanup = cancel
	go s.limiter.run(ctx, 5*time.Minute)

	return s
}

// Shutdown stops the limiter cleanup and gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.stopCleanup()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// middleware assigns a request id, puts a request-scoped logger in the
// context, then applies instrumentation.
func (s *Server) middleware(next http.Handler) http.Handler {
	h := s.instrument(next)
	h = log.RequestIDMiddleware(func(r *http.Request) string { return r.Header.Get(headerRequestID) })(h)
	h = log.Middleware(s.logger)(h)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(headerRequestID, id)
		}
		w.Header().Set(headerRequestID, id)
		h.ServeHTTP(w, r)
	})
}

// instrument adds security headers, rate limits mutations and logs completion.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		setSecurityHeaders(w.Header())
		if isSuspicious(r) {
			s.suspicious.Add(1)
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldClientIP, clientIP, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path,
				"user_agent", r.Header.Get("User-Agent"))
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		if isMutation(r.Method) && !s.limiter.allow(clientIP) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, clientIP, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
			rw.Header().Set("Retry-After", "60")
			writeJSON(rw, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded, try again later"})
		} else {
			next.ServeHTTP(rw, r)
		}

		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogHTTPEnd(r.Context(), r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	})
}

func isMutation(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodDelete
}

// responseWriter captures the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
