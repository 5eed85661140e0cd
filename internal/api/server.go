// Package api exposes the query pipeline over HTTP: an authenticated JSON
// endpoint, a signed messaging webhook, and health probes.
package api

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docentlabs/docent/internal/log"
)

// ServerConfig assembles the API server.
type ServerConfig struct {
	Logger log.Logger
	Query  QueryService // Required

	WebhookSecret []byte        // Required: 32+ bytes, signs inbound webhooks
	Pool          *pgxpool.Pool // Optional: nil disables the database readiness check
	CORSOrigins   []string
	IsDev         bool // Disables HSTS
	TrustProxy    bool // Trust X-Real-IP/X-Forwarded-For
	RateBurst     int  // Per-IP burst size (0 = default 60)
}

// Server is the HTTP server for the document assistant.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a server with all routes and middleware configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Query == nil {
		return nil, errors.New("query service is required")
	}
	if len(cfg.WebhookSecret) < 32 {
		return nil, errors.New("webhook secret must be at least 32 bytes")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	qh := &queryHandler{service: cfg.Query, logger: logger}
	wh := &webhookHandler{service: cfg.Query, secret: cfg.WebhookSecret, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/query", qh.answer)
	mux.HandleFunc("POST /api/v1/webhooks/messages", wh.receive)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	limiter := newIPLimiter(1.0, burst)

	// Middleware stack, outermost first:
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID precedes Logging so request_id appears in log attributes;
	// CORS precedes RateLimit so preflight responses carry CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(limiter, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	isDev := cfg.IsDev
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, isDev)
		handler.ServeHTTP(w, r)
	})

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
