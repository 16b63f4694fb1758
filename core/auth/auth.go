package auth

import (
	"context"
	"errors"

	"github.com/sistemaeducativo/gradebook/core"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoSession          = errors.New("no active session")
)

type (
	// PrincipalObserver is called with the new principal on sign-in, and with nil on sign-out.
	PrincipalObserver func(p *core.Principal)

	// Provider is the identity provider: it owns credentials and sessions.
	Provider interface {
		// CurrentPrincipal returns the principal of an active session, or nil.
		CurrentPrincipal(ctx context.Context, sessionID string) (*core.Principal, error)
		OnPrincipalChange(fn PrincipalObserver)
		SignOut(ctx context.Context, sessionID string) error
		CreatePrincipal(ctx context.Context, email, password string) (core.Principal, error)
		// Authenticate checks credentials and opens a new session.
		Authenticate(ctx context.Context, email, password string) (core.Principal, error)
	}
)
