package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/me/rspd/internal/command"
	"github.com/me/rspd/internal/config"
	"github.com/me/rspd/internal/scheduler"
	"github.com/me/rspd/internal/store"
)

// Server is the rspd REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	store     store.Store
	driver    scheduler.Driver
	sink      command.Sink
	now       func() time.Time
	newID     func() string
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithSink sets where command results go (usually the journal recorder).
func WithSink(sink command.Sink) Option {
	return func(s *Server) {
		s.sink = sink
	}
}

// WithClock replaces time.Now for journal timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// New creates a new Server with all routes registered. Scheduler access
// goes through drv so that every call runs on the scheduling goroutine.
func New(cfg config.ServerConfig, st store.Store, drv scheduler.Driver, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		store:     st,
		driver:    drv,
		now:       time.Now,
		newID:     func() string { return "cmd_" + uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// StartScheduler begins the scheduling loop in a background goroutine.
func (s *Server) StartScheduler(ctx context.Context) {
	if s.driver == nil {
		return
	}
	go func() {
		if err := s.driver.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("scheduler stopped", "error", err)
		}
	}()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)

		r.Route("/commands", func(r chi.Router) {
			r.Get("/", s.handleListCommands)
			r.Post("/", s.handleEnterCommand)
			r.Get("/{id}", s.handleGetCommand)
		})

		r.Route("/owners/{owner}", func(r chi.Router) {
			r.Delete("/commands", s.handleCancel)
			r.Delete("/subscriptions/{handle}", s.handleRemoveSubscription)
		})

		r.Get("/rounds", s.handleListRounds)
		r.Get("/cache", s.handleCache)
		r.Get("/scheduler", s.handleScheduler)
	})
}
