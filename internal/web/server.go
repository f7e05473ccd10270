// Package web provides the HTTP server exposing conversions, schemas and
// observers as a JSON/CSV API.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/seconvert/internal/config"
	"github.com/JonMunkholm/seconvert/internal/core"
	"github.com/JonMunkholm/seconvert/internal/schema"
	"github.com/JonMunkholm/seconvert/internal/web/middleware"
)

// Server is the HTTP server for the conversion API.
type Server struct {
	catalog *schema.Catalog
	cfg     *config.Config
	limiter *core.Limiter
	db      core.TxBeginner
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server instance. db may be nil, in which case
// table loads are refused.
func NewServer(catalog *schema.Catalog, cfg *config.Config, db core.TxBeginner) *Server {
	s := &Server{
		catalog: catalog,
		cfg:     cfg,
		limiter: core.NewLimiter(cfg.Limits.MaxConcurrent, cfg.Limits.MaxWaitTime),
		db:      db,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(
		chimw.RequestID,
		middleware.TrustedRealIP(s.cfg.Security.TrustedProxies),
		middleware.Logger,
		chimw.Recoverer,
		securityHeaders,
	)

	if s.cfg.Rate.Enabled {
		rl := middleware.NewRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(rl.Handler)
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(&s.cfg.Security))

		// Catalog
		r.Get("/schemas", s.handleListSchemas)
		r.Get("/schemas/{id}", s.handleGetSchema)
		r.Get("/observers", s.handleListObservers)

		// Conversions
		r.Post("/convert/{from}/{to}", s.handleConvert)
		r.Post("/convert-json/{from}/{to}", s.handleConvertJSON)
		r.Post("/preview/{from}/{to}", s.handlePreview)
		r.Post("/load/{from}/{to}", s.handleLoad)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server, then waits for running
// conversions to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.limiter.WaitForDrain(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

var securityHeaderValues = map[string]string{
	"X-Content-Type-Options":  "nosniff",
	"X-Frame-Options":         "DENY",
	"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
	"Referrer-Policy":         "no-referrer",
}

// securityHeaders sets headers for a data-only API on every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range securityHeaderValues {
			w.Header().Set(k, v)
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes v with status 200. Encoding errors can only be logged
// once the header is out.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
