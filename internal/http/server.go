// Package http exposes the envelope engine as a JSON API.
//
// The caller is identified by the X-Owner header; authentication itself is
// expected to happen upstream (reverse proxy, gateway). Balances are always
// computed fresh; only the feed endpoint is served through a short-lived
// cache.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"envelopes/internal/cache"
	"envelopes/internal/core"
	"envelopes/internal/engine"
	applog "envelopes/internal/log"
)

type Server struct {
	http.Server
	engine      *engine.Engine
	rateLimiter *rateLimiter

	// Feed responses are the only cached reads. Entries are invalidated on
	// every mutation by the same owner.
	feedCache    *cache.LRUCache[[]core.TransactionView]
	feedGroup    singleflight.Group
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// Options tune the server-side feed cache.
type Options struct {
	FeedCacheTTL  time.Duration
	FeedCacheSize int
}

func defaultOptions() Options {
	return Options{
		FeedCacheTTL:  30 * time.Second,
		FeedCacheSize: 256,
	}
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, eng *engine.Engine, opts *Options) *Server {
	o := defaultOptions()
	if opts != nil {
		o = *opts
	}

	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		engine:       eng,
		rateLimiter:  newRateLimiter(),
		feedCache:    cache.NewLRUCache[[]core.TransactionView](o.FeedCacheSize, o.FeedCacheTTL),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.feedCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /envelopes", s.protect(s.handleCreateEnvelope))
	mux.HandleFunc("GET /envelopes", s.protect(s.handleListEnvelopes))
	mux.HandleFunc("GET /envelopes/{id}", s.protect(s.handleGetEnvelope))
	mux.HandleFunc("PUT /envelopes/{id}", s.protect(s.handleEditEnvelope))
	mux.HandleFunc("DELETE /envelopes/{id}", s.protect(s.handleDeleteEnvelope))
	mux.HandleFunc("GET /envelopes/{id}/balance", s.protect(s.handleBalance))
	mux.HandleFunc("POST /envelopes/{id}/income", s.protect(s.handleAddIncome))
	mux.HandleFunc("POST /envelopes/{id}/expenses", s.protect(s.handleAddExpense))
	mux.HandleFunc("DELETE /income/{id}", s.protect(s.handleDeleteIncome))
	mux.HandleFunc("DELETE /expenses/{id}", s.protect(s.handleDeleteExpense))
	mux.HandleFunc("GET /feed", s.protect(s.handleFeed))

	httpLogger := applog.New(applog.Config{
		Component: applog.ComponentHTTP,
		Handler:   slog.Default().Handler(),
	})
	s.Server.Handler = applog.Middleware(httpLogger)(mux)

	return s
}

// protect adds security headers, rate limiting and request logging.
func (s *Server) protect(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		logger := applog.FromContext(ctx).With(applog.FieldRequestID, requestID)

		logger.InfoContext(ctx, "Request started",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, clientIP,
			applog.FieldUserAgent, r.Header.Get("User-Agent"))

		// Rate limit mutations only; reads are cheap and cacheable.
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			logger.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		fields := applog.NewFields().
			WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "").
			WithHTTPResponse(rw.statusCode, duration.Milliseconds(), rw.statusCode < 400).
			WithClientIP(clientIP)
		logger.InfoContext(ctx, "Request completed", fields.ToSlice()...)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
