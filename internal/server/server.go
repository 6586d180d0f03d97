package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/me/onelane/internal/config"
	"github.com/me/onelane/internal/hub"
	"github.com/me/onelane/internal/scheduler"
	"github.com/me/onelane/internal/store"
)

// Server exposes the bridge scheduler over websocket, SSE and a JSON API.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	scheduler *scheduler.Scheduler
	hub       *hub.Hub
	store     store.Store // optional; nil when the journal is disabled

	// Websocket and SSE streams outlive http.Server.Shutdown, so they are
	// tracked here and ended by CloseSessions.
	sessMu      sync.Mutex
	sessions    sync.WaitGroup
	closing     chan struct{}
	closingOnce sync.Once
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithStore enables the event journal endpoints.
func WithStore(st store.Store) Option {
	return func(s *Server) {
		s.store = st
	}
}

// New creates a new Server with all routes registered. sched must publish
// to h so that observers attached here receive its events.
func New(cfg config.ServerConfig, sched *scheduler.Scheduler, h *hub.Hub, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		scheduler: sched,
		hub:       h,
		closing:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// StartHub begins event dispatch in a background goroutine.
func (s *Server) StartHub(ctx context.Context) {
	go func() {
		if err := s.hub.Start(ctx); err != nil && err != context.Canceled {
			s.logger.Error("hub stopped", "error", err)
		}
	}()
}

// CloseSessions refuses new websocket and SSE streams, ends the open ones
// and waits for their handlers to return. Once it returns no stream can issue
// another command, so stopping the hub afterwards dispatches every event.
func (s *Server) CloseSessions() {
	s.sessMu.Lock()
	s.closingOnce.Do(func() { close(s.closing) })
	s.sessMu.Unlock()
	s.sessions.Wait()
}

// beginSession registers a long-lived stream. It reports false once
// CloseSessions has been called.
func (s *Server) beginSession() bool {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	select {
	case <-s.closing:
		return false
	default:
	}
	s.sessions.Add(1)
	return true
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

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	// Websocket command and broadcast channel
	r.Get("/ws", s.handleWS)

	// API routes (JSON)
	r.Route("/api/v1", func(r chi.Router) {
		// Discovery
		r.Get("/", s.handleDiscovery)

		// Health
		r.Get("/health", s.handleHealth)

		// Bridge state
		r.Get("/state", s.handleGetState)
		r.Post("/reset", s.handleReset)

		// Vehicles
		r.Route("/vehicles", func(r chi.Router) {
			r.Post("/", s.handleRegisterVehicle)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetVehicle)
				r.Post("/request-crossing", s.handleRequestCrossing)
				r.Post("/finish-crossing", s.handleFinishCrossing)
			})
		})

		// Event journal
		r.Get("/events", s.handleListEvents)

		// SSE stream of broadcast events
		r.Route("/sse", func(r chi.Router) {
			r.Get("/events", s.handleSSEEvents)
		})
	})
}
