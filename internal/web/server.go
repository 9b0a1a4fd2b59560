// Package web exposes the import pipeline over HTTP.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/coach/internal/config"
	"github.com/JonMunkholm/coach/internal/core"
	mw "github.com/JonMunkholm/coach/internal/web/middleware"
)

// maxUploadFiles bounds the number of entries files in one request.
const maxUploadFiles = 16

// Pinger checks the database connection for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are optional collaborators of the server.
type Deps struct {
	DB      Pinger       // nil skips the database check
	Metrics http.Handler // nil disables /metrics
}

// Server is the HTTP frontend of the import service.
type Server struct {
	service *core.Service
	cfg     *config.Config
	deps    Deps
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server instance.
func NewServer(service *core.Service, cfg *config.Config, deps Deps) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		deps:    deps,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics)
	}

	s.router.Get("/api/meets/with-results", s.handleMeetsWithResults)
	s.router.Route("/api/meets/{meetID}", func(r chi.Router) {
		r.Post("/entries", s.handleImportEntries)
		r.Post("/results", s.handleImportResults)
		r.Get("/imports", s.handleImportHistory)
		r.Get("/imports/latest", s.handleLatestImports)
		r.Get("/times", s.handleMeetTimes)
	})
}

// Start begins listening for HTTP requests on the configured address.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are only logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
