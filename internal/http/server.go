package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"bilancio/internal/cache"
	"bilancio/internal/core"
	"bilancio/internal/services"
)

// Server exposes the budget engine as a JSON API.
type Server struct {
	http.Server
	budget       *services.BudgetService
	transactions *services.TransactionService
	rateLimiter  *rateLimiter
	metrics      *securityMetrics

	// budgetCache holds evaluated budget states keyed by date; every
	// mutating endpoint flushes it.
	budgetCache  *cache.LRUCache[core.BudgetState]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, budget *services.BudgetService, transactions *services.TransactionService) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		budget:       budget,
		transactions: transactions,
		rateLimiter:  newRateLimiter(),
		metrics:      &securityMetrics{},
		budgetCache:  cache.NewLRUCache[core.BudgetState](64, time.Minute),
		cacheManager: cache.NewManager(),
	}
	s.cacheManager.Register(s.budgetCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/budget", s.withSecurity(s.handleGetBudget))
	mux.HandleFunc("PUT /api/budget/config", s.withSecurity(s.handleUpdateConfig))

	mux.HandleFunc("GET /api/entries", s.withSecurity(s.handleListEntries))
	mux.HandleFunc("POST /api/entries", s.withSecurity(s.handleCreateEntry))
	mux.HandleFunc("GET /api/entries/{id}", s.withSecurity(s.handleGetEntry))
	mux.HandleFunc("GET /api/entries/{id}/progress", s.withSecurity(s.handleEntryProgress))
	mux.HandleFunc("PUT /api/entries/{id}", s.withSecurity(s.handleEditEntry))
	mux.HandleFunc("DELETE /api/entries/{id}", s.withSecurity(s.handleDeleteEntry))

	mux.HandleFunc("GET /api/goals", s.withSecurity(s.handleListGoals))
	mux.HandleFunc("POST /api/goals", s.withSecurity(s.handleCreateGoal))
	mux.HandleFunc("GET /api/goals/{id}", s.withSecurity(s.handleGetGoal))
	mux.HandleFunc("PUT /api/goals/{id}", s.withSecurity(s.handleEditGoal))
	mux.HandleFunc("DELETE /api/goals/{id}", s.withSecurity(s.handleDeleteGoal))
	mux.HandleFunc("POST /api/goals/{id}/pause", s.withSecurity(s.handlePauseGoal))
	mux.HandleFunc("POST /api/goals/pause-all", s.withSecurity(s.handlePauseAllGoals))

	mux.HandleFunc("GET /api/transactions", s.withSecurity(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.withSecurity(s.handleIngestTransaction))
	mux.HandleFunc("GET /api/transactions/pending", s.withSecurity(s.handleListPending))
	mux.HandleFunc("POST /api/transactions/{id}/confirm", s.withSecurity(s.handleConfirmTransaction))

	return s
}

// Shutdown stops background routines, then the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withSecurity adds request IDs, logging, rate limiting on mutations, and
// security headers.
func (s *Server) withSecurity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		if detectSuspiciousRequest(r, s.metrics) {
			slog.WarnContext(ctx, "Suspicious request",
				"request_id", requestID,
				"method", r.Method,
				"url", r.URL.Path,
				"client_ip", clientIP)
		}

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP, s.metrics) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				"client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// flushBudgetCache drops cached evaluations after any ledger mutation.
func (s *Server) flushBudgetCache() {
	s.budgetCache.Flush()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
