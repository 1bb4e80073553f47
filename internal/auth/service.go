// Package auth is the façade the desktop UI talks to. It answers "am I
// connected" by validating the stored credential live against GitHub, clears
// the store when GitHub reports the token revoked, and forwards the device
// flow steps to the engine.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/florianilch/ghdevice/internal/autherr"
	"github.com/florianilch/ghdevice/internal/credstore"
	"github.com/florianilch/ghdevice/internal/deviceflow"
	"github.com/florianilch/ghdevice/internal/github"
)

// Status reports whether a live GitHub credential is stored.
type Status struct {
	Connected bool            `json:"connected"`
	User      *credstore.User `json:"user,omitempty"`
	Scope     string          `json:"scope,omitempty"`
}

// DisconnectResult reports the outcome of Disconnect.
type DisconnectResult struct {
	Removed bool `json:"removed"`
}

// DeviceFlow is the part of the device flow engine the service forwards to.
type DeviceFlow interface {
	Start(ctx context.Context) (deviceflow.Start, error)
	Complete(ctx context.Context, deviceCode string) (deviceflow.Result, error)
}

// Compile-time check to ensure the engine satisfies DeviceFlow
var _ DeviceFlow = (*deviceflow.Engine)(nil)

// Service orchestrates the credential store, the identity resolver and the
// device flow engine.
type Service struct {
	store    credstore.Store
	resolver github.IdentityResolver
	flow     DeviceFlow
}

// NewService creates a Service.
func NewService(store credstore.Store, resolver github.IdentityResolver, flow DeviceFlow) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("missing credential store")
	}
	if resolver == nil {
		return nil, fmt.Errorf("missing identity resolver")
	}
	if flow == nil {
		return nil, fmt.Errorf("missing device flow")
	}

	return &Service{
		store:    store,
		resolver: resolver,
		flow:     flow,
	}, nil
}

// Status validates the stored credential against GitHub.
//
// No credential returns disconnected without a network call. A blank token or
// a 401 clears the store and returns disconnected. Any other failure is
// returned as an error and leaves the credential in place, since an outage
// says nothing about the token's validity.
func (s *Service) Status(ctx context.Context) (Status, error) {
	cred, err := s.store.Load(ctx)
	if err != nil {
		return Status{}, err
	}
	if cred == nil {
		return Status{}, nil
	}
	if !cred.HasToken() {
		s.store.Clear(ctx)
		return Status{}, nil
	}

	user, err := s.resolver.FetchIdentity(ctx, cred.AccessToken)
	if err != nil {
		if errors.Is(err, autherr.ErrUnauthorized) {
			slog.InfoContext(ctx, "stored github token revoked, clearing credential")
			s.store.Clear(ctx)
			return Status{}, nil
		}
		return Status{}, fmt.Errorf("validating github credential: %w", err)
	}

	return Status{
		Connected: true,
		User:      &user,
		Scope:     cred.Scope,
	}, nil
}

// Start begins a device flow.
func (s *Service) Start(ctx context.Context) (deviceflow.Start, error) {
	return s.flow.Start(ctx)
}

// Complete makes one token exchange attempt for deviceCode.
func (s *Service) Complete(ctx context.Context, deviceCode string) (deviceflow.Result, error) {
	return s.flow.Complete(ctx, deviceCode)
}

// Disconnect forgets the stored credential. It never fails.
func (s *Service) Disconnect(ctx context.Context) DisconnectResult {
	removed := s.store.Clear(ctx)
	slog.InfoContext(ctx, "github account disconnected", "removed", removed)
	return DisconnectResult{Removed: removed}
}

// Whoami returns the live profile for callers that assume a connection.
// Returns autherr.ErrNotConnected when nothing is stored and
// autherr.ErrTokenRevoked (after clearing the store) on a 401.
func (s *Service) Whoami(ctx context.Context) (credstore.User, error) {
	cred, err := s.store.Load(ctx)
	if err != nil {
		return credstore.User{}, err
	}
	if cred == nil {
		return credstore.User{}, autherr.ErrNotConnected
	}
	if !cred.HasToken() {
		s.store.Clear(ctx)
		return credstore.User{}, autherr.ErrNotConnected
	}

	user, err := s.resolver.FetchIdentity(ctx, cred.AccessToken)
	if err != nil {
		if errors.Is(err, autherr.ErrUnauthorized) {
			s.store.Clear(ctx)
			return credstore.User{}, autherr.ErrTokenRevoked
		}
		return credstore.User{}, err
	}
	return user, nil
}
