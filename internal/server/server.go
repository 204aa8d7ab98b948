// Package server exposes the Nexus HTTP API.
//
// Routes:
//
//   - POST   /api/v1/chat         — chat over Server-Sent Events
//   - GET    /api/v1/chat/ws      — the same event stream over WebSocket
//   - GET    /api/v1/tools        — list registered tools
//   - GET    /api/v1/plugins      — list registered plugin tools
//   - POST   /api/v1/plugins      — register a plugin (admin token required)
//   - DELETE /api/v1/plugins/{id} — unregister a plugin (admin token required)
//   - GET    /healthz, /readyz    — liveness and readiness probes
//   - GET    /metrics             — Prometheus scrape endpoint
//
// API routes are wrapped in the observe middleware for tracing, metrics,
// and request logging.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nexuslabs/nexus/internal/health"
	"github.com/nexuslabs/nexus/internal/observe"
	"github.com/nexuslabs/nexus/internal/orchestrator"
	"github.com/nexuslabs/nexus/internal/tool"
)

// Config carries the subset of server settings the HTTP layer needs.
type Config struct {
	// ListenAddr is the address passed to net.Listen, e.g. ":8080".
	ListenAddr string

	// AdminToken guards the plugin administration endpoints. When empty,
	// plugin registration and removal are disabled entirely.
	AdminToken string

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	TLSCertFile string
	TLSKeyFile  string
}

// Server owns the HTTP listener and routes requests into the orchestrator
// and tool registry.
type Server struct {
	cfg      Config
	orch     *orchestrator.Orchestrator
	registry *tool.Registry

	healthHandler *health.Handler
	metrics       *observe.Metrics
	pluginClient  *http.Client

	httpServer *http.Server
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*Server)

// WithHealthHandler injects a health handler instead of the default empty one.
func WithHealthHandler(h *health.Handler) Option {
	return func(s *Server) { s.healthHandler = h }
}

// WithMetrics injects the metrics bundle used by the HTTP middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithPluginClient injects the HTTP client used to call plugin endpoints.
func WithPluginClient(c *http.Client) Option {
	return func(s *Server) { s.pluginClient = c }
}

// New creates a Server wired to the given orchestrator and tool registry.
func New(cfg Config, orch *orchestrator.Orchestrator, registry *tool.Registry, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		orch:     orch,
		registry: registry,
	}
	for _, o := range opts {
		o(s)
	}
	if s.healthHandler == nil {
		s.healthHandler = health.New()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler builds the full route table. Exposed separately from Run so tests
// can drive the server through httptest without a real listener.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /api/v1/chat", s.handleChat)
	api.HandleFunc("GET /api/v1/chat/ws", s.handleChatWS)
	api.HandleFunc("GET /api/v1/tools", s.handleListTools)
	api.HandleFunc("GET /api/v1/plugins", s.handleListPlugins)
	api.HandleFunc("POST /api/v1/plugins", s.handleRegisterPlugin)
	api.HandleFunc("DELETE /api/v1/plugins/{id}", s.handleUnregisterPlugin)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", observe.Middleware(s.metrics)(api))
	s.healthHandler.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Run starts the HTTP listener and blocks until ctx is cancelled or the
// listener fails. Cancellation returns ctx.Err(); call Shutdown afterwards
// to drain in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "" {
			errCh <- s.httpServer.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
			return
		}
		errCh <- s.httpServer.ListenAndServe()
	}()

	slog.Info("server: listening", "addr", s.cfg.ListenAddr, "tls", s.cfg.TLSCertFile != "")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: listen: %w", err)
	}
}

// Shutdown stops accepting new connections, drains in-flight requests, and
// waits for the orchestrator's background memory writes to settle. It
// respects the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	s.orch.Wait()
	return nil
}

// authorize validates the bearer admin token on plugin write endpoints. It
// writes the failure response itself and reports whether the caller may
// proceed.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	if s.cfg.AdminToken == "" {
		writeError(w, http.StatusForbidden, "plugin administration is disabled")
		return false
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
		writeError(w, http.StatusUnauthorized, "invalid admin token")
		return false
	}
	return true
}

// ─── Response helpers ────────────────────────────────────────────────────────

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

// writeError writes a JSON error body with the given status code.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
