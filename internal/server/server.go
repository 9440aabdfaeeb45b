// Package server exposes the gateway and dealer over HTTP and streams
// committed table events to websocket clients.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/Mappledude/jampoker/internal/dealer"
	"github.com/Mappledude/jampoker/internal/gateway"
	"github.com/Mappledude/jampoker/internal/store"
)

// PlayerHeader carries the caller's identity. Authentication happens in
// front of this service.
const PlayerHeader = "X-Player-ID"

const shutdownTimeout = 5 * time.Second

// Server serves the table API
type Server struct {
	store    store.Store
	gateway  *gateway.Gateway
	dealer   *dealer.Manager
	hub      *Hub
	clock    quartz.Clock
	logger   *log.Logger
	upgrader websocket.Upgrader
	router   chi.Router
}

// Option configures a Server
type Option func(*Server)

// WithClock sets the clock used for action timestamps
func WithClock(c quartz.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// New creates a server. gw and dm should publish to hub so feed clients
// see their commits.
func New(st store.Store, gw *gateway.Gateway, dm *dealer.Manager, hub *Hub, logger *log.Logger, opts ...Option) *Server {
	s := &Server{
		store:   st,
		gateway: gw,
		dealer:  dm,
		hub:     hub,
		clock:   quartz.NewReal(),
		logger:  logger.WithPrefix("server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Browsers on other origins may only watch; every write
				// goes through the HTTP API.
				return true
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)

	r.Route("/tables/{table}", func(r chi.Router) {
		r.Post("/actions", s.handleEnqueue)
		r.Get("/actions/{action}", s.handleGetAction)
		r.Post("/actions/{action}/submit", s.handleSubmit)

		r.Post("/hands", s.handleStartHand)
		r.Post("/street", s.handleForceStreet)
		r.Post("/showdown", s.handleForceShowdown)

		r.Get("/hand", s.handleGetHand)
		r.Get("/hand/hole", s.handleGetHole)

		r.Put("/seats/{seat}", s.handleSit)
		r.Delete("/seats/{seat}", s.handleLeave)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// ListenAndServe runs the hub and the HTTP listener on addr until ctx is
// cancelled, then shuts both down
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
