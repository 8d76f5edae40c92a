// Package server exposes the agents over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tabletop/internal/agent"
	"tabletop/internal/campaign"
	"tabletop/internal/config"
	"tabletop/internal/eventbus"
	"tabletop/internal/gamesystem"
	"tabletop/internal/security"
)

// AgentRunner runs one agent request. *agent.Dispatcher implements it.
type AgentRunner interface {
	Run(ctx context.Context, req agent.Request) (*agent.Response, error)
}

// Deps are the collaborators the server routes to. Metrics and MCP are
// optional; their routes are only mounted when set.
type Deps struct {
	Agents     AgentRunner
	Membership campaign.Membership
	Auth       security.Authenticator
	Systems    *gamesystem.Catalog
	Bus        *eventbus.Bus
	Logger     *slog.Logger
	Metrics    http.Handler
	MCP        http.Handler
}

// Server is the HTTP front end.
type Server struct {
	cfg            config.HTTPConfig
	requestTimeout time.Duration
	deps           Deps
	router         chi.Router
}

// New builds the router.
func New(cfg *config.Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{
		cfg:            cfg.HTTP,
		requestTimeout: cfg.Agent.RequestTimeout(),
		deps:           deps,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.deps.Metrics != nil {
		r.Handle("/metrics", s.deps.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/api/game-systems", s.handleGameSystems)
		r.With(s.timeout).Post("/api/agent", s.handleAgent)

		if s.deps.MCP != nil {
			r.Handle("/mcp", s.deps.MCP)
			r.Handle("/mcp/*", s.deps.MCP)
		}
	})
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout(),
		WriteTimeout: s.cfg.WriteTimeout(),
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info("http server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout())
	defer cancel()
	s.deps.Logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGameSystems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Systems.All())
}
