package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"fintrack/internal/analytics"
	"fintrack/internal/auth"
	"fintrack/internal/cache"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

// SyncNotifier receives change events after successful transaction writes.
// Implementations publish to the export queue; a nil notifier disables
// publishing. Failures are logged and never fail the request.
type SyncNotifier interface {
	TransactionUpserted(ctx context.Context, id int64) error
	TransactionDeleted(ctx context.Context, id int64) error
}

type Server struct {
	http.Server

	store    *storage.SQLiteRepository
	auth     *auth.Service
	reports  *analytics.Service
	notifier SyncNotifier
	logger   *applog.Logger

	rateLimiter *rateLimiter
	metrics     *securityMetrics

	// Analytics responses are cached per request shape and invalidated
	// wholesale on every write.
	reportCache  *cache.LRU[analytics.Result]
	savingsCache *cache.LRU[analytics.SavingsResult]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
// notifier may be nil when no export queue is configured.
func NewServer(addr string, store *storage.SQLiteRepository, authSvc *auth.Service, notifier SyncNotifier, logger *applog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		store:            store,
		auth:             authSvc,
		reports:          analytics.NewService(store, store),
		notifier:         notifier,
		logger:           logger.WithComponent(applog.ComponentHTTP),
		rateLimiter:      newRateLimiter(defaultRateLimitPerMinute),
		metrics:          &securityMetrics{},
		reportCache:      cache.NewLRU[analytics.Result](100, 5*time.Minute),
		savingsCache:     cache.NewLRU[analytics.SavingsResult](100, 5*time.Minute),
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/auth/setup", s.public(s.handleAuthSetup))
	mux.HandleFunc("POST /api/auth/login", s.public(s.handleAuthLogin))
	mux.HandleFunc("GET /api/auth/check", s.protected(s.handleAuthCheck))

	mux.HandleFunc("GET /api/categories", s.protected(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.protected(s.handleCreateCategory))
	mux.HandleFunc("PUT /api/categories/{id}", s.protected(s.handleUpdateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", s.protected(s.handleDeleteCategory))

	mux.HandleFunc("GET /api/transactions", s.protected(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.protected(s.handleCreateTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", s.protected(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.protected(s.handleDeleteTransaction))

	mux.HandleFunc("POST /api/analytics", s.protected(s.handleAnalytics))
	mux.HandleFunc("POST /api/analytics/savings", s.protected(s.handleSavingsAnalytics))
	mux.HandleFunc("GET /api/periods", s.protected(s.handlePeriods))

	return s
}

// public wraps a handler with request logging, security headers and rate
// limiting but no token check.
func (s *Server) public(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		logger := s.logger.With(applog.FieldRequestID, requestID)
		ctx := context.WithValue(r.Context(), applog.LoggerContextKey, logger)
		r = r.WithContext(ctx)

		if isMutating(r.Method) && !s.rateLimiter.allow(clientIP, s.metrics) {
			logger.WarnContext(ctx, "rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		setSecurityHeaders(w)

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rw, r)

		applog.LogHTTPEnd(ctx, logger, r, rw.status, time.Since(start).Milliseconds(), clientIP)
	}
}

// protected adds a bearer-token check on top of public.
func (s *Server) protected(next http.HandlerFunc) http.HandlerFunc {
	return s.public(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if err := s.auth.Check(r.Context(), token); err != nil {
			respondError(w, r, err)
			return
		}
		next(w, r)
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	}
	return false
}

func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Cache-Control", "no-store")
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// invalidateReports drops all cached analytics responses. Called after
// every successful write so reports never serve stale totals.
func (s *Server) invalidateReports() {
	s.reportCache.Clear()
	s.savingsCache.Clear()
}

// notifyUpsert publishes a sync event, logging failures without failing
// the originating request.
func (s *Server) notifyUpsert(ctx context.Context, id int64) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.TransactionUpserted(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "publish transaction sync failed",
			applog.FieldError, err, applog.FieldTransactionID, id)
	}
}

func (s *Server) notifyDelete(ctx context.Context, id int64) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.TransactionDeleted(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "publish transaction delete failed",
			applog.FieldError, err, applog.FieldTransactionID, id)
	}
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := s.reportCache.CleanExpired() + s.savingsCache.CleanExpired()
			if removed > 0 {
				s.logger.Debug("cache cleanup completed", "entries_removed", removed)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown stops background cleanup goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		close(s.stopCacheCleanup)
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]any)
	status := "ready"
	httpStatus := http.StatusOK

	if err := s.store.Ping(ctx); err != nil {
		checks["database"] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	checks["report_cache_entries"] = s.reportCache.Size() + s.savingsCache.Size()

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}
