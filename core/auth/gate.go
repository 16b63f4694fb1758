package auth

import (
	"context"

	"github.com/pkg/errors"

	"github.com/sistemaeducativo/gradebook/core"
	"github.com/sistemaeducativo/gradebook/core/user"
)

// Gate messages
const (
	MsgUserNotFound = "Usuario no encontrado en la base de datos"
	MsgNoPermission = "No tienes permisos para acceder a esta página"
)

type (
	// UserGetter resolves a principal to its stored user.
	UserGetter interface {
		GetUser(ctx context.Context, id string) (user.User, error)
	}

	// GateResult is the outcome of a Check: either Allowed with the resolved User,
	// or a redirect (with an optional message to show).
	GateResult struct {
		Allowed    bool
		User       user.User
		RedirectTo string
		Message    string
	}

	Gate struct {
		users  UserGetter
		logger core.Logger
	}
)

func NewGate(users UserGetter, logger core.Logger) *Gate {
	return &Gate{users: users, logger: logger}
}

func denied(msg string) GateResult {
	return GateResult{RedirectTo: user.LoginPath, Message: msg}
}

// Check resolves the principal's user and requires its role to be exactly required.
func (g *Gate) Check(ctx context.Context, principal *core.Principal, required user.Role) GateResult {
	if principal.IsZero() {
		return denied("")
	}

	usr, err := g.users.GetUser(ctx, principal.ID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return denied(MsgUserNotFound)
		}
		g.logger.Error("verifying user", err, map[string]interface{}{"principal": principal.ID})
		return denied("")
	}
	if usr.Role != required {
		return denied(MsgNoPermission)
	}
	return GateResult{Allowed: true, User: usr}
}

// CurrentUser returns the stored user of principal, or nil.
func (g *Gate) CurrentUser(ctx context.Context, principal *core.Principal) *user.User {
	if principal.IsZero() {
		return nil
	}
	usr, err := g.users.GetUser(ctx, principal.ID)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			g.logger.Error("getting current user", err, map[string]interface{}{"principal": principal.ID})
		}
		return nil
	}
	return &usr
}
