// Package http serves the ledger as a JSON API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"envelopes/internal/core"
	"envelopes/internal/log"
	"envelopes/internal/middleware/ratelimit"
	"envelopes/internal/middleware/security"
	"envelopes/internal/middleware/trace"
	"envelopes/internal/services"
)

// Services are the operations exposed over HTTP.
type Services struct {
	Ledger  *services.LedgerService
	Fills   *services.FillService
	Imports *services.ImportService
	Buckets *services.BucketService
	IDs     core.IDGenerator
}

type Options struct {
	Logger             *log.Logger
	RateLimitPerMinute int
	MaxBodyBytes       int64
	// TrustedProxies are extra CIDRs whose forwarding headers are honored.
	TrustedProxies []string
	Currency       string
}

type Server struct {
	http.Server
	svc      Services
	currency string

	limiter      *ratelimit.Limiter
	tracer       *trace.Middleware
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc Services, opts Options) (*Server, error) {
	if svc.IDs == nil {
		svc.IDs = core.UUIDGenerator{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}
	clientIP, err := security.NewClientIP(opts.TrustedProxies...)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	limits := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limits.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		svc:      svc,
		currency: opts.Currency,
		limiter:  ratelimit.NewLimiter(limits),
		tracer:   trace.NewMiddleware(),
	}

	api := http.NewServeMux()
	api.HandleFunc("GET /api/transactions", s.handleListTransactions)
	api.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	api.HandleFunc("GET /api/transactions/{id...}", s.handleGetTransaction)
	api.HandleFunc("DELETE /api/transactions/{id...}", s.handleDeleteTransaction)
	api.HandleFunc("GET /api/balances", s.handleBalances)
	api.HandleFunc("POST /api/fills/plan", s.handlePlanFill)
	api.HandleFunc("POST /api/fills", s.handleSaveFill)
	api.HandleFunc("PUT /api/fills/{txnID...}", s.handleSaveFill)
	api.HandleFunc("GET /api/fills/{txnID...}", s.handleLoadFill)
	api.HandleFunc("DELETE /api/fills/{txnID...}", s.handleDeleteFill)
	api.HandleFunc("POST /api/import", s.handleImport)
	api.HandleFunc("GET /api/buckets", s.handleListBuckets)
	api.HandleFunc("POST /api/buckets", s.handleCreateBucket)
	api.HandleFunc("PUT /api/buckets/tags", s.handleSaveTags)

	var apiHandler http.Handler = api
	apiHandler = security.JSONBody(opts.MaxBodyBytes, writeStatus)(apiHandler)
	apiHandler = s.limiter.Middleware(clientIP.Extract, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.NewFields().WithClientIP(clientIP.Extract(r)).WithOperation(r.Method+" "+r.URL.Path).ToSlice()...)
		writeStatus(w, http.StatusTooManyRequests, "rate limit exceeded")
	})(apiHandler)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", handleHealth)
	root.HandleFunc("GET /readyz", s.handleReady)
	root.HandleFunc("GET /metrics", s.handleMetrics)
	root.Handle("/api/", apiHandler)

	var h http.Handler = root
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = log.Middleware(logger, trace.RequestID)(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Shutdown stops background cleanup and drains open connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.svc.Ledger.Store().Ping(ctx); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
		writeStatus(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"requests":   s.tracer.GetMetrics(),
		"rate_limit": s.limiter.GetMetrics(),
	})
}
