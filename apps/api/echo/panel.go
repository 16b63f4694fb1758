package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/sistemaeducativo/gradebook/core/auth"
	"github.com/sistemaeducativo/gradebook/core/user"
)

type panelApi struct {
	gate *auth.Gate
}

func registerPanelAPI(g *echo.Group, jwt *jwtAuth, opts *Options) {
	api := panelApi{gate: opts.Gate}

	g.GET("/panels/:panel", api.access, jwt.required())
	g.GET("/gate/:role", api.check, jwt.optional())
}

// access answers 204 when the context user may open the panel.
func (api *panelApi) access(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !usr.Manager().CanAccessPanel(ctx.Param("panel")) {
		return newForbiddenError(auth.MsgNoPermission)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// check runs the dashboard gate of a role for the (possibly anonymous) caller.
func (api *panelApi) check(ctx echo.Context) error {
	required := user.ParseRole(ctx.Param("role"))
	if required == user.RoleNone {
		return errHttpNotFound
	}

	res := api.gate.Check(ctx.Request().Context(), getContextPrincipal(ctx), required)
	out := GateResponse{
		Allowed:    res.Allowed,
		RedirectTo: res.RedirectTo,
		Message:    res.Message,
	}
	if res.Allowed {
		usr := res.User
		out.User = &usr
	}
	return ctx.JSON(http.StatusOK, out)
}

type GateResponse struct {
	Allowed    bool       `json:"allowed"`
	User       *user.User `json:"user,omitempty"`
	RedirectTo string     `json:"redirect_to,omitempty"`
	Message    string     `json:"message,omitempty"`
}
