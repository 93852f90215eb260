// Package server provides the HTTP API for kiku.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/kiku/internal/config"
	"github.com/hyperjump/kiku/internal/models"
	"github.com/hyperjump/kiku/internal/search"
	"github.com/hyperjump/kiku/internal/session"
	"go.uber.org/zap"
)

// HistoryService is the part of the history service the API exposes.
type HistoryService interface {
	List(ctx context.Context, userID string, offset, limit int) ([]*models.HistoryEntry, error)
	Count(ctx context.Context, userID string) (int64, error)
	Search(ctx context.Context, userID, query string, limit int) ([]*models.HistorySearchResult, error)
	Delete(ctx context.Context, userID, id string) error
	IndexedCount() (uint64, error)
}

// Server is the HTTP server for the kiku API.
type Server struct {
	fetcher   search.Fetcher
	endpoints search.EndpointSource
	sessions  *session.Registry
	history   HistoryService
	config    *config.ServerConfig
	auth      *config.AuthConfig
	storage   *config.StorageConfig
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies. history may be nil,
// in which case the history routes answer 501.
func NewServer(
	fetcher search.Fetcher,
	endpoints search.EndpointSource,
	sessions *session.Registry,
	history HistoryService,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		fetcher:   fetcher,
		endpoints: endpoints,
		sessions:  sessions,
		config:    &cfg.Server,
		history:   history,
		auth:      &cfg.Auth,
		storage:   &cfg.Storage,
		logger:    logger,
	}
}

// Handler returns the router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(s.cors)
	r.Use(s.withUser)

	r.Get("/health", s.handleHealth)
	r.Get("/api/v1/status", s.handleStatus)
	r.Post("/api/v1/proxy/search", s.handleProxySearch)

	r.With(s.withSession).Get("/api/v1/session", s.handleGetSession)
	r.Delete("/api/v1/session", s.handleEndSession)

	r.Route("/api/v1/conversations", func(r chi.Router) {
		r.Use(s.withSession)
		r.Get("/", s.handleListConversations)
		r.Get("/grouped", s.handleGroupedConversations)
		r.Post("/ask", s.handleAsk)
		r.Put("/active/{id}", s.handleSelectConversation)
		r.Delete("/active", s.handleClearActive)
		r.Delete("/{id}", s.handleDeleteConversation)
	})

	r.Route("/api/v1/history", func(r chi.Router) {
		r.Use(s.requireUser)
		r.Get("/", s.handleListHistory)
		r.Delete("/{id}", s.handleDeleteHistory)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
