package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/florianilch/ghdevice/internal/auth"
	"github.com/florianilch/ghdevice/internal/credstore"
	"github.com/florianilch/ghdevice/internal/deviceflow"
)

// AuthService is the part of auth.Service exposed over HTTP.
type AuthService interface {
	Status(ctx context.Context) (auth.Status, error)
	Start(ctx context.Context) (deviceflow.Start, error)
	Complete(ctx context.Context, deviceCode string) (deviceflow.Result, error)
	Disconnect(ctx context.Context) auth.DisconnectResult
	Whoami(ctx context.Context) (credstore.User, error)
}

// Compile-time check that auth.Service satisfies AuthService
var _ AuthService = (*auth.Service)(nil)

// Server is the loopback HTTP JSON API over the auth service.
type Server struct {
	mux    *http.ServeMux
	server *http.Server
	addr   atomic.Value // string
}

// Compile-time check that Server implements http.Handler
var _ http.Handler = (*Server)(nil)

// New creates a Server routing the /auth endpoints to svc.
func New(svc AuthService) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("missing auth service")
	}

	h := &handlers{svc: svc}
	logger := slog.Default()

	middlewares := []func(http.Handler) http.Handler{
		RequestID,
		Logging(logger),
		Recovery,
	}

	mux := http.NewServeMux()
	mux.Handle("GET /auth/status", applyMiddlewares(http.HandlerFunc(h.status), middlewares...))
	mux.Handle("POST /auth/start", applyMiddlewares(http.HandlerFunc(h.start), middlewares...))
	mux.Handle("POST /auth/complete", applyMiddlewares(http.HandlerFunc(h.complete), middlewares...))
	mux.Handle("POST /auth/disconnect", applyMiddlewares(http.HandlerFunc(h.disconnect), middlewares...))
	mux.Handle("GET /auth/me", applyMiddlewares(http.HandlerFunc(h.whoami), middlewares...))

	return &Server{mux: mux}, nil
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (s *Server) Start(ctx context.Context, address string) (<-chan error, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	s.server = &http.Server{
		Handler:     s,
		ReadTimeout: 10 * time.Second,
		// Status and whoami wait on GitHub, bounded by the client timeout
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	s.addr.Store(listener.Addr().String())
	slog.InfoContext(ctx, "auth api listening", "address", s.Addr())

	errCh := make(chan error, 1)

	go func() {
		err := s.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	addr, _ := s.addr.Load().(string)
	return addr
}

// Shutdown performs graceful shutdown of the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		_ = s.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
