package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/florianilch/ghdevice/internal/auth"
	"github.com/florianilch/ghdevice/internal/deviceflow"
	"github.com/florianilch/ghdevice/internal/github"
	"github.com/florianilch/ghdevice/internal/server"
	"github.com/florianilch/ghdevice/internal/settings"
)

// App wires the credential store, GitHub client, device flow engine and auth
// service, and runs the HTTP API.
type App struct {
	cfg     *Config
	service *auth.Service
	server  *server.Server
}

// New creates a new App instance. No network or storage I/O happens here.
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	service, err := newAuthService(cfg)
	if err != nil {
		return nil, err
	}

	apiServer, err := server.New(service)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return &App{
		cfg:     cfg,
		service: service,
		server:  apiServer,
	}, nil
}

// Service returns the auth service for in-process callers such as the CLI.
func (a *App) Service() *auth.Service {
	return a.service
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := net.JoinHostPort(a.cfg.Server.Host, strconv.FormatUint(uint64(a.cfg.Server.Port), 10))
	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting auth api", "address", address)
	serverErrCh, err := a.server.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("server startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.server.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-serverErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "server runtime error", "error", err)
				return fmt.Errorf("server: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", a.server.Addr())

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}

// newAuthService builds the auth service graph from configuration.
func newAuthService(cfg *Config) (*auth.Service, error) {
	store, err := cfg.Auth.NewCredentialStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create credential store: %w", err)
	}

	httpClient := github.NewHTTPClient(nil, cfg.GitHub.UserAgent)
	httpClient.Timeout = cfg.GitHub.Timeout

	client := github.NewClient(
		github.WithAPIBaseURL(cfg.GitHub.APIBaseURL),
		github.WithHTTPClient(httpClient),
	)

	// A nil source resolves to the built-in client id and scopes
	var src settings.Source
	if cfg.Settings.File != "" {
		src = settings.NewFileSource(cfg.Settings.File)
	}

	engine, err := deviceflow.New(store, client, src,
		deviceflow.WithEndpoint(github.Endpoint(cfg.GitHub.BaseURL)),
		deviceflow.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create device flow engine: %w", err)
	}

	service, err := auth.NewService(store, client, engine)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth service: %w", err)
	}
	return service, nil
}
