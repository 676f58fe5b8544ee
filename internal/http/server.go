// Package http serves the JSON API, health checks, metrics and the embedded
// frontend.
package http

import (
	"context"
	"io/fs"
	"net/http"
	"sync"
	"time"

	applog "expensetracker/internal/log"
	"expensetracker/internal/metrics"
	"expensetracker/internal/middleware/ratelimit"
	"expensetracker/internal/middleware/security"
	"expensetracker/internal/middleware/trace"
	"expensetracker/internal/services"
	appweb "expensetracker/web"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Addr               string
	RateLimitPerMinute int
	CORSAllowedOrigins []string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
}

type Server struct {
	http.Server
	users       *services.UserService
	expenses    *services.ExpenseService
	pinger      Pinger
	logger      *applog.Logger
	detector    *security.Detector
	rateLimiter *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, logger *applog.Logger, users *services.UserService, expenses *services.ExpenseService, pinger Pinger) *Server {
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       60 * time.Second,
		},
		users:    users,
		expenses: expenses,
		pinger:   pinger,
		logger:   logger,
		detector: security.NewDetector(),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
		}),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	// InstrumentHandler sits directly on the mux so it sees the matched pattern.
	var handler http.Handler = metrics.InstrumentHandler(mux)
	handler = security.NewCORS(cfg.CORSAllowedOrigins).Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.detector.Middleware(logger)(handler)
	handler = trace.NewMiddleware(logger, s.detector.ExtractClientIP).Middleware(handler)
	s.Handler = handler

	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.Handle("POST /api/users", s.limited(http.HandlerFunc(s.handleRegister)))
	mux.Handle("GET /api/users", s.requireUser(s.handleListUsers))
	mux.Handle("POST /api/login", s.limited(http.HandlerFunc(s.handleLogin)))

	mux.Handle("GET /api/expenses", s.requireUser(s.handleListExpenses))
	mux.Handle("GET /api/expenses/{yearMonth}", s.requireUser(s.handleMonthSummary))
	mux.Handle("POST /api/expenses", s.limited(s.requireUser(s.handleCreateExpense)))

	mux.HandleFunc("/api/", handleUnknownEndpoint)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", metrics.Handler())

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		// Methodless so it does not conflict with the "/api/" catch-all.
		mux.Handle("/", security.StaticAssetMiddleware(300)(http.FileServerFS(sub)))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}
}

// limited applies the per-client rate limit.
func (s *Server) limited(next http.Handler) http.Handler {
	return s.rateLimiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		metrics.RecordRejected("rate_limited")
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			applog.NewFields().
				WithComponent(applog.ComponentRateLimit).
				WithClientIP(s.detector.ExtractClientIP(r)).
				WithHTTPRequest(r.Method, r.URL.Path, "", "").
				ToSlice()...)
		writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
	})(next)
}

// Shutdown stops background routines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleUnknownEndpoint(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, msgUnknownEndpoint)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
