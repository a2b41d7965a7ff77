package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/mockify/interviewstats/internal/config"
	"github.com/mockify/interviewstats/internal/metrics"
	"github.com/mockify/interviewstats/internal/store"
	"github.com/mockify/interviewstats/internal/wordbank"
)

// VersionInfo holds build-time version metadata.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// Server is the HTTP server for the analytics JSON API.
type Server struct {
	mu      sync.RWMutex
	cfg     config.Config
	repo    *store.Repository
	cache   *wordbank.Cache
	mux     *http.ServeMux
	httpSrv *http.Server
	version VersionInfo
	now     func() time.Time

	// handlerDelay is injected before each timeout-wrapped
	// handler, used only by tests to guarantee handlers
	// exceed a short timeout. Zero in production.
	handlerDelay time.Duration
}

// New creates a new Server.
func New(
	cfg config.Config, repo *store.Repository, cache *wordbank.Cache,
	opts ...Option,
) *Server {
	if cache == nil {
		cache = wordbank.NewCache()
	}
	s := &Server{
		cfg:   cfg,
		repo:  repo,
		cache: cache,
		mux:   http.NewServeMux(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the build-time version metadata.
func WithVersion(v VersionInfo) Option {
	return func(s *Server) { s.version = v }
}

// WithClock overrides the clock used for recency weighting and
// rebuild provenance. Nil is ignored.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

func (s *Server) routes() {
	s.mux.Handle("GET /api/v1/dashboard", s.withTimeout(s.handleDashboard))

	s.mux.Handle("GET /api/v1/sessions", s.withTimeout(s.handleListSessions))
	s.mux.Handle("POST /api/v1/sessions", s.withTimeout(s.handleCreateSessions))
	s.mux.Handle("GET /api/v1/sessions/{id}", s.withTimeout(s.handleGetSession))
	s.mux.Handle("DELETE /api/v1/sessions/{id}", s.withTimeout(s.handleDeleteSession))
	s.mux.Handle(
		"PUT /api/v1/sessions/{id}/feedback", s.withTimeout(s.handleUpdateFeedback),
	)

	s.mux.Handle("GET /api/v1/wordbank", s.withTimeout(s.handleGetWordBank))
	s.mux.Handle("DELETE /api/v1/wordbank", s.withTimeout(s.handleClearWordBank))
	s.mux.Handle(
		"POST /api/v1/wordbank/rebuild", s.withTimeout(s.handleRebuildWordBank),
	)
	// Export: Do not use timeout handler to support large downloads and avoid buffering.
	s.mux.Handle(
		"GET /api/v1/wordbank/export", http.HandlerFunc(s.handleExportWordBank),
	)
	s.mux.Handle("GET /api/v1/keywords", s.withTimeout(s.handleKeywords))

	s.mux.Handle("GET /api/v1/stats", s.withTimeout(s.handleGetStats))
	s.mux.Handle("GET /api/v1/version", s.withTimeout(s.handleGetVersion))
	s.mux.Handle("GET /metrics", metrics.Handler())
}

func (s *Server) handleGetVersion(
	w http.ResponseWriter, _ *http.Request,
) {
	writeJSON(w, http.StatusOK, s.version)
}

// SetPort updates the listen port (for testing).
func (s *Server) SetPort(port int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Port = port
}

// matcher returns the configured keyword matcher (thread-safe).
func (s *Server) matcher() wordbank.Matcher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.MatcherImpl()
}

func (s *Server) halfLifeDays() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.HalfLifeDays
}

// Handler returns the http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(logMiddleware(s.mux))
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.mu.RLock()
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	s.mu.RUnlock()
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()
	log.Printf("Starting server at http://%s", addr)
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.httpSrv
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// FindAvailablePort finds an available port starting from the
// given port, binding to the specified host.
func FindAvailablePort(host string, start int) int {
	for port := start; port < start+100; port++ {
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			ln.Close()
			return port
		}
	}
	return start
}

// URL returns the base URL the server listens on.
func (s *Server) URL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("http://%s", net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)))
}
