// Package server publishes the generated year feeds over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Server serves the .rss files of one output directory.
type Server struct {
	logger     zerolog.Logger
	httpServer *http.Server
	router     *chi.Mux
	handler    *Handler
}

// New creates a server for the feeds in dir.
func New(addr, dir, version string, logger zerolog.Logger) *Server {
	s := &Server{
		logger:  logger,
		handler: NewHandler(dir, version, logger),
	}

	s.router = chi.NewRouter()
	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(CORSMiddleware)
	s.router.Use(LoggingMiddleware(s.logger))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handler.Health)
	s.router.Get("/feeds", s.handler.ListFeeds)
	s.router.Get("/feeds/{year:[0-9]{4}}.rss", s.handler.GetFeed)
	s.router.Head("/feeds/{year:[0-9]{4}}.rss", s.handler.GetFeed)
}

// Handler returns the routed handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start blocks until the server stops. A graceful shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.httpServer.Addr).
		Str("dir", s.handler.dir).
		Msg("serving feeds")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits up to ten seconds for
// in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}
